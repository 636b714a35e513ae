// Command cloakframe applies the cloak to a directory of still frames,
// using a background averaged from one or more reference images.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"invisibility-cloak/internal/background"
	"invisibility-cloak/internal/colorrange"
	"invisibility-cloak/internal/mask"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	bgPath := flag.String("background", "", "Background image or directory of images to average")
	framesDir := flag.String("frames", "", "Directory of frames to process")
	outDir := flag.String("out", "cloaked", "Output directory")
	color := flag.String("color", colorrange.DefaultPreset, "Cloak colour preset: "+strings.Join(colorrange.Presets(), ", "))
	workers := flag.Int("workers", runtime.NumCPU(), "Frames processed in parallel")
	blur := flag.Int("blur", 0, "Gaussian blur applied to the averaged background (odd, 0 disables)")
	flag.Parse()

	if *bgPath == "" || *framesDir == "" {
		fmt.Println("Usage: cloakframe -background <image|dir> -frames <dir> [-out cloaked] [-color red] [-workers N]")
		os.Exit(1)
	}

	model, err := colorrange.FromPreset(*color)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad colour: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	fmt.Printf("Averaging background from %s...\n", *bgPath)
	store := background.NewStore()
	defer store.Close()
	bg, err := captureBackground(ctx, store, *bgPath, *blur)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Background capture failed: %v\n", err)
		os.Exit(1)
	}
	size := bg.Size()
	fmt.Printf("Background %s: %d samples, %dx%d, flicker %.2f\n", bg.ID, bg.Samples, size.X, size.Y, bg.Flicker)

	refiner, err := mask.NewRefiner(mask.DefaultRefineParams())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad refine parameters: %v\n", err)
		os.Exit(1)
	}
	defer refiner.Close()

	fmt.Printf("Colour: %s (%s)\n", model.Name(), colorrange.Describe(model.Name()))
	fmt.Printf("Processing %s with %d workers...\n", *framesDir, *workers)

	res, err := run(ctx, job{
		Background: bg,
		Model:      model,
		Refiner:    refiner,
		FramesDir:  *framesDir,
		OutDir:     *outDir,
		Workers:    *workers,
		Progress: func(path string, coverage float64) {
			fmt.Printf("  %-40s cloak %5.1f%%\n", filepath.Base(path), coverage*100)
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nWrote %d frames to %s (mean cloak coverage %.1f%%)\n", res.Frames, *outDir, res.MeanCoverage*100)
}
