// Package scenedetect finds content cuts in a video by comparing
// successive low-resolution grayscale frames. The decoder is a black box;
// the detector only sees sampled frames.
package scenedetect

import (
	"context"
	"fmt"
)

// Interval is one detected scene: inclusive start, exclusive end, seconds.
type Interval struct {
	Start float64
	End   float64
}

// FrameSource yields sampled grayscale frames for a video.
type FrameSource interface {
	GrayFrames(ctx context.Context, videoPath string, width, height int, fps float64) ([][]byte, error)
}

// Options tunes the detector.
type Options struct {
	// Threshold is the mean absolute pixel difference (0-255 scale) above
	// which two successive samples are declared a cut.
	Threshold float64
	// SampleFPS is how many frames per second to sample.
	SampleFPS float64
	// Width and Height of the downscaled analysis frames.
	Width  int
	Height int
	// MinSceneSeconds suppresses cuts that would create a scene shorter
	// than this.
	MinSceneSeconds float64
}

// DefaultOptions mirror the detector the index was built with.
func DefaultOptions() Options {
	return Options{
		Threshold:       27,
		SampleFPS:       4,
		Width:           160,
		Height:          90,
		MinSceneSeconds: 0.5,
	}
}

// Detector segments videos into scenes.
type Detector struct {
	source FrameSource
	opts   Options
}

// New builds a Detector over the given frame source.
func New(source FrameSource, opts Options) *Detector {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultOptions().Threshold
	}
	if opts.SampleFPS <= 0 {
		opts.SampleFPS = DefaultOptions().SampleFPS
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width = DefaultOptions().Width
		opts.Height = DefaultOptions().Height
	}
	if opts.MinSceneSeconds < 0 {
		opts.MinSceneSeconds = 0
	}
	return &Detector{source: source, opts: opts}
}

// Detect returns the ordered scene intervals covering [0, duration).
// A video with no detected cuts yields a single interval spanning the
// whole duration.
func (d *Detector) Detect(ctx context.Context, videoPath string, duration float64) ([]Interval, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("detect scenes: non-positive duration %g", duration)
	}

	framesList, err := d.source.GrayFrames(ctx, videoPath, d.opts.Width, d.opts.Height, d.opts.SampleFPS)
	if err != nil {
		return nil, fmt.Errorf("detect scenes: %w", err)
	}

	cuts := d.findCuts(framesList)
	return intervalsFromCuts(cuts, duration, d.opts.MinSceneSeconds), nil
}

// findCuts returns the timestamps (seconds) where content changes abruptly.
func (d *Detector) findCuts(framesList [][]byte) []float64 {
	var cuts []float64
	for i := 1; i < len(framesList); i++ {
		if len(framesList[i]) != len(framesList[i-1]) || len(framesList[i]) == 0 {
			continue
		}
		if meanAbsDiff(framesList[i-1], framesList[i]) >= d.opts.Threshold {
			cuts = append(cuts, float64(i)/d.opts.SampleFPS)
		}
	}
	return cuts
}

func meanAbsDiff(a, b []byte) float64 {
	var sum int64
	for i := range a {
		diff := int64(a[i]) - int64(b[i])
		if diff < 0 {
			diff = -diff
		}
		sum += diff
	}
	return float64(sum) / float64(len(a))
}

// intervalsFromCuts converts cut timestamps into a strictly ordered
// non-overlapping cover of [0, duration).
func intervalsFromCuts(cuts []float64, duration, minScene float64) []Interval {
	intervals := make([]Interval, 0, len(cuts)+1)
	start := 0.0
	for _, cut := range cuts {
		if cut <= start || cut >= duration {
			continue
		}
		if cut-start < minScene {
			continue
		}
		intervals = append(intervals, Interval{Start: start, End: cut})
		start = cut
	}
	intervals = append(intervals, Interval{Start: start, End: duration})
	return intervals
}
