package frame

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
	".webp": true,
}

// ImageDirSource replays still images as frames, in lexical file order.
type ImageDirSource struct {
	paths []string
	next  int
	loop  bool
}

// OpenImages builds a source from a single image file or a directory of
// images. With loop set the sequence restarts instead of ending.
func OpenImages(path string, loop bool) (*ImageDirSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image source: %w", err)
	}

	var paths []string
	if fi.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read image directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				paths = append(paths, filepath.Join(path, entry.Name()))
			}
		}
		sort.Strings(paths)
	} else {
		paths = []string{path}
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", path)
	}
	return &ImageDirSource{paths: paths, loop: loop}, nil
}

// Len returns the number of images in one pass.
func (s *ImageDirSource) Len() int {
	return len(s.paths)
}

// Paths returns the image paths in read order.
func (s *ImageDirSource) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Read decodes the next image into dst.
func (s *ImageDirSource) Read(dst *gocv.Mat) error {
	if s.next >= len(s.paths) {
		if !s.loop {
			return ErrEndOfStream
		}
		s.next = 0
	}
	path := s.paths[s.next]
	s.next++

	mat, err := LoadImage(path)
	if err != nil {
		return &AcquisitionError{Source: path, Err: err}
	}
	defer mat.Close()
	mat.CopyTo(dst)
	return nil
}

// Close is a no-op; images are opened per read.
func (s *ImageDirSource) Close() error {
	return nil
}

// LoadImage decodes an image file into a BGR Mat.
func LoadImage(path string) (gocv.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img)
}

// DirSink writes each frame as a numbered PNG.
type DirSink struct {
	dir    string
	prefix string
	count  int
}

// NewDirSink creates dir if needed.
func NewDirSink(dir, prefix string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &DirSink{dir: dir, prefix: prefix}, nil
}

// Write stores frame as <prefix><n>.png.
func (s *DirSink) Write(frame gocv.Mat) error {
	path := filepath.Join(s.dir, fmt.Sprintf("%s%06d.png", s.prefix, s.count))
	if err := s.WriteNamed(path, frame); err != nil {
		return err
	}
	s.count++
	return nil
}

// WriteNamed stores frame at an explicit path.
func (s *DirSink) WriteNamed(path string, frame gocv.Mat) error {
	if frame.Empty() {
		return errors.New("refusing to write empty frame")
	}
	if ok := gocv.IMWrite(path, frame); !ok {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}

// Close is a no-op.
func (s *DirSink) Close() error {
	return nil
}
