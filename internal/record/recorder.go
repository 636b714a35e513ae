// Package record encodes output frames to an mp4 file through ffmpeg.
package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"invisibility-cloak/internal/frame"

	"github.com/google/uuid"
	ffmpeg "github.com/u2takey/ffmpeg-go"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("recorder closed")

// queueDepth bounds how many raw frames wait for ffmpeg.
const queueDepth = 8

// Options configure a recording.
type Options struct {
	Dir    string
	FPS    float64
	Codec  string // passed to ffmpeg as -c:v
	Width  int
	Height int
}

// Filename returns the output name for a recording started at t.
func Filename(t time.Time) string {
	return "invisibility_cloak_" + t.Format("20060102_150405") + ".mp4"
}

// Recorder streams BGR frames to an ffmpeg process as rawvideo. It
// implements frame.Sink.
type Recorder struct {
	log     *slog.Logger
	session uuid.UUID
	path    string
	size    image.Point
	started time.Time

	ctx    context.Context
	group  *errgroup.Group
	queue  chan []byte
	stderr *bytes.Buffer

	mu     sync.Mutex
	frames int
	closed bool
}

var _ frame.Sink = (*Recorder)(nil)

// Start launches ffmpeg and returns a recorder ready for frames of exactly
// opts.Width x opts.Height.
func Start(ctx context.Context, opts Options, log *slog.Logger) (*Recorder, error) {
	if log == nil {
		log = slog.Default()
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid recording size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid recording fps %g", opts.FPS)
	}
	if opts.Codec == "" {
		opts.Codec = "libx264"
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	started := time.Now()
	r := &Recorder{
		log:     log,
		session: uuid.New(),
		path:    filepath.Join(opts.Dir, Filename(started)),
		size:    image.Pt(opts.Width, opts.Height),
		started: started,
		queue:   make(chan []byte, queueDepth),
		stderr:  &bytes.Buffer{},
	}

	pr, pw := io.Pipe()
	r.group, r.ctx = errgroup.WithContext(ctx)

	stream := ffmpeg.Input("pipe:0", ffmpeg.KwArgs{
		"format":  "rawvideo",
		"pix_fmt": "bgr24",
		"s":       fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"r":       fmt.Sprintf("%g", opts.FPS),
	}).
		Output(r.path, ffmpeg.KwArgs{
			"c:v":     opts.Codec,
			"pix_fmt": "yuv420p",
		}).
		OverWriteOutput().
		WithInput(pr).
		WithErrorOutput(r.stderr)
	stream.Context = r.ctx

	r.group.Go(func() error {
		err := stream.Run()
		if err != nil {
			err = fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(r.stderr.String()))
		}
		// Unblock the writer if ffmpeg exits early.
		pr.CloseWithError(err)
		return err
	})

	r.group.Go(func() error {
		defer pw.Close()
		for buf := range r.queue {
			if _, err := pw.Write(buf); err != nil {
				return fmt.Errorf("failed to feed ffmpeg: %w", err)
			}
		}
		return nil
	})

	log.Info("recording started", "session", r.session, "path", r.path,
		"size", fmt.Sprintf("%dx%d", opts.Width, opts.Height), "fps", opts.FPS, "codec", opts.Codec)
	return r, nil
}

// Path returns the output file path.
func (r *Recorder) Path() string {
	return r.path
}

// Frames returns how many frames were queued.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Write queues one frame. It blocks while ffmpeg is behind by more than a
// few frames.
func (r *Recorder) Write(m gocv.Mat) error {
	if err := frame.Validate(m); err != nil {
		return fmt.Errorf("failed to record frame: %w", err)
	}
	if got := frame.Size(m); got != r.size {
		return fmt.Errorf("failed to record frame: size %dx%d, recording is %dx%d",
			got.X, got.Y, r.size.X, r.size.Y)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	select {
	case r.queue <- m.ToBytes():
		r.frames++
		return nil
	case <-r.ctx.Done():
		return fmt.Errorf("recording aborted: %w", context.Cause(r.ctx))
	}
}

// Close flushes queued frames and waits for ffmpeg to finish the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	frames := r.frames
	r.mu.Unlock()

	err := r.group.Wait()
	if err != nil {
		r.log.Error("recording failed", "session", r.session, "path", r.path, "error", err)
		return err
	}
	r.log.Info("recording saved", "session", r.session, "path", r.path,
		"frames", frames, "duration", time.Since(r.started).Round(time.Second))
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
