package frame

import (
	"image"
	"runtime"
	"sync"

	"gocv.io/x/gocv"
)

// FromImage converts a Go image to a BGR Mat. Rows are converted in
// parallel stripes; the caller owns the returned Mat.
func FromImage(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	buf := make([]byte, width*height*3)

	forStripes(height, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			row := y * width * 3
			for x := 0; x < width; x++ {
				r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
				// OpenCV uses BGR format
				buf[row+x*3+0] = uint8(b >> 8)
				buf[row+x*3+1] = uint8(g >> 8)
				buf[row+x*3+2] = uint8(r >> 8)
			}
		}
	})

	// NewMatFromBytes wraps buf without copying; clone so the Mat owns its data.
	wrapped, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer wrapped.Close()
	mat := wrapped.Clone()
	runtime.KeepAlive(buf)
	return mat, nil
}

// ToImage converts a BGR Mat to an RGBA image.
func ToImage(mat gocv.Mat) (*image.RGBA, error) {
	if err := Validate(mat); err != nil {
		return nil, err
	}
	h := mat.Rows()
	w := mat.Cols()
	src := mat.ToBytes()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stride := img.Stride

	forStripes(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			rowOffset := y * stride
			srcRow := y * w * 3
			for x := 0; x < w; x++ {
				pixOffset := rowOffset + x*4
				img.Pix[pixOffset+0] = src[srcRow+x*3+2] // R
				img.Pix[pixOffset+1] = src[srcRow+x*3+1] // G
				img.Pix[pixOffset+2] = src[srcRow+x*3+0] // B
				img.Pix[pixOffset+3] = 255
			}
		}
	})

	return img, nil
}

// forStripes splits [0, rows) into one horizontal stripe per CPU.
func forStripes(rows int, fn func(yStart, yEnd int)) {
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (rows + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > rows {
			endY = rows
		}
		if startY >= rows {
			break
		}

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			fn(yStart, yEnd)
		}(startY, endY)
	}
	wg.Wait()
}
