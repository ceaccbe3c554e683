// Package edl emits CMX 3600 edit decision lists from scene selections,
// using non-drop HH:MM:SS:FF timecode at each clip's frame rate.
package edl

import (
	"fmt"
	"math"
	"strings"
)

// DefaultFPS is assumed when a clip carries no frame rate.
const DefaultFPS = 29.97

// Clip is one event in the export: a scene with its in/out points in
// seconds and the source clip's display name and frame rate.
type Clip struct {
	SceneID  int64
	In       float64
	Out      float64
	ClipName string
	FPS      float64
}

// SecondsToTimecode converts seconds into non-drop SMPTE HH:MM:SS:FF at
// the given frame rate.
func SecondsToTimecode(seconds, fps float64) string {
	if fps <= 0 {
		fps = DefaultFPS
	}
	nominal := int(math.Round(fps))
	totalFrames := int(math.Round(seconds * fps))
	framePart := totalFrames % nominal
	totalSeconds := totalFrames / nominal
	secs := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	mins := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, mins, secs, framePart)
}

// TimecodeToSeconds parses non-drop SMPTE HH:MM:SS:FF back to seconds at
// the given frame rate.
func TimecodeToSeconds(timecode string, fps float64) (float64, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	var hours, mins, secs, framePart int
	if _, err := fmt.Sscanf(strings.TrimSpace(timecode), "%d:%d:%d:%d", &hours, &mins, &secs, &framePart); err != nil {
		return 0, fmt.Errorf("parse timecode %q: %w", timecode, err)
	}
	nominal := int(math.Round(fps))
	totalFrames := ((hours*60+mins)*60+secs)*nominal + framePart
	return float64(totalFrames) / fps, nil
}

// Export renders the clips as a CMX 3600 EDL. Record positions run
// continuously from zero in playlist order.
func Export(title string, clips []Clip) string {
	if strings.TrimSpace(title) == "" {
		title = "Fennec Export"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TITLE: %s\n", title)
	b.WriteString("FCM: NON-DROP FRAME\n\n")

	recordIn := 0.0
	for i, clip := range clips {
		fps := clip.FPS
		if fps <= 0 {
			fps = DefaultFPS
		}
		duration := clip.Out - clip.In
		recordOut := recordIn + duration

		fmt.Fprintf(&b, "%03d  AX       V     C        %s %s %s %s\n",
			i+1,
			SecondsToTimecode(clip.In, fps),
			SecondsToTimecode(clip.Out, fps),
			SecondsToTimecode(recordIn, fps),
			SecondsToTimecode(recordOut, fps),
		)
		fmt.Fprintf(&b, "* FROM CLIP NAME: %s\n\n", clip.ClipName)

		recordIn = recordOut
	}
	return b.String()
}

// Event is one parsed EDL entry.
type Event struct {
	Number   int
	SrcIn    string
	SrcOut   string
	RecIn    string
	RecOut   string
	ClipName string
}

// Parse reads back the events of a CMX 3600 EDL produced by Export.
// Used to verify round-trips; it is not a general EDL reader.
func Parse(content string) ([]Event, error) {
	var events []Event
	var current *Event
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "TITLE:") || strings.HasPrefix(trimmed, "FCM:") {
			continue
		}
		if name, ok := strings.CutPrefix(trimmed, "* FROM CLIP NAME:"); ok {
			if current != nil {
				current.ClipName = strings.TrimSpace(name)
				events = append(events, *current)
				current = nil
			}
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) != 8 {
			return nil, fmt.Errorf("malformed event line: %q", trimmed)
		}
		var number int
		if _, err := fmt.Sscanf(fields[0], "%d", &number); err != nil {
			return nil, fmt.Errorf("malformed event number: %q", fields[0])
		}
		current = &Event{
			Number: number,
			SrcIn:  fields[4],
			SrcOut: fields[5],
			RecIn:  fields[6],
			RecOut: fields[7],
		}
	}
	if current != nil {
		events = append(events, *current)
	}
	return events, nil
}
