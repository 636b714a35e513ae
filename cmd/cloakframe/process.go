package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"invisibility-cloak/internal/background"
	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/composite"
	"invisibility-cloak/internal/frame"
	"invisibility-cloak/internal/mask"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// job describes one batch run. Refiner is shared by all workers.
type job struct {
	Background *background.Background
	Model      colorrange.Model
	Refiner    *mask.Refiner
	FramesDir  string
	OutDir     string
	Workers    int
	Progress   func(path string, coverage float64)
}

type result struct {
	Frames       int
	MeanCoverage float64
}

// captureBackground averages every image at path (a file or a directory).
func captureBackground(ctx context.Context, store *background.Store, path string, blur int) (*background.Background, error) {
	src, err := frame.OpenImages(path, false)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return store.Capture(ctx, src, background.CaptureOptions{
		Samples:  src.Len(),
		BlurSize: blur,
	})
}

func run(ctx context.Context, j job) (result, error) {
	src, err := frame.OpenImages(j.FramesDir, false)
	if err != nil {
		return result{}, err
	}
	defer src.Close()

	sink, err := frame.NewDirSink(j.OutDir, "cloak_")
	if err != nil {
		return result{}, err
	}
	defer sink.Close()

	paths := src.Paths()
	coverage := make([]float64, len(paths))

	var progressMu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	if j.Workers > 0 {
		g.SetLimit(j.Workers)
	}
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := filepath.Join(j.OutDir, fmt.Sprintf("cloak_%06d.png", i))
			c, err := processFrame(path, out, j, sink)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			coverage[i] = c
			if j.Progress != nil {
				progressMu.Lock()
				j.Progress(path, c)
				progressMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result{}, err
	}

	return result{Frames: len(paths), MeanCoverage: stat.Mean(coverage, nil)}, nil
}

// processFrame composites one file and returns the refined mask coverage.
func processFrame(path, out string, j job, sink *frame.DirSink) (float64, error) {
	live, err := frame.LoadImage(path)
	if err != nil {
		return 0, err
	}
	defer live.Close()

	raw, err := mask.Segment(live, j.Model)
	if err != nil {
		return 0, err
	}
	defer raw.Close()

	refined, err := j.Refiner.Refine(raw)
	if err != nil {
		return 0, err
	}
	defer refined.Close()

	cloaked, err := composite.Composite(live, j.Background.Image, refined)
	if err != nil {
		return 0, err
	}
	defer cloaked.Close()

	if err := sink.WriteNamed(out, cloaked); err != nil {
		return 0, err
	}
	return float64(gocv.CountNonZero(refined)) / float64(refined.Rows()*refined.Cols()), nil
}
