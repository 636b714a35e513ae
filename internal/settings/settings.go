// Package settings persists the last-used colour bounds as JSON.
//
// The file layout is
//
//	{
//	  "custom": {
//	    "ranges": [[[h, s, v], [h, s, v]]],
//	    "description": "Custom HSV range",
//	    "timestamp": "2024-05-01T12:00:00Z"
//	  },
//	  "preset": "red"
//	}
//
// "preset" is only written when the saved model is a named preset.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"invisibility-cloak/internal/colorrange"
)

// DefaultPath is used when no path is configured.
const DefaultPath = "custom_hsv.json"

type record struct {
	Custom entry  `json:"custom"`
	Preset string `json:"preset,omitempty"`
}

type entry struct {
	Ranges      [][2][3]int `json:"ranges"`
	Description string      `json:"description"`
	Timestamp   string      `json:"timestamp"`
}

// File is a settings file on disk.
type File struct {
	path string
	log  *slog.Logger
	mu   sync.Mutex
}

// Open returns a handle for path. The file need not exist yet.
func Open(path string, log *slog.Logger) *File {
	if path == "" {
		path = DefaultPath
	}
	if log == nil {
		log = slog.Default()
	}
	return &File{path: path, log: log}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load reads the saved model. ok is false when the file does not exist.
func (f *File) Load() (model colorrange.Model, ok bool, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return colorrange.Model{}, false, nil
	}
	if err != nil {
		return colorrange.Model{}, false, fmt.Errorf("failed to read settings: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return colorrange.Model{}, false, fmt.Errorf("failed to parse settings %s: %w", f.path, err)
	}

	if rec.Preset != "" {
		m, err := colorrange.FromPreset(rec.Preset)
		if err != nil {
			return colorrange.Model{}, false, err
		}
		return m, true, nil
	}

	pairs := make([]colorrange.Bounds, 0, len(rec.Custom.Ranges))
	for _, r := range rec.Custom.Ranges {
		pairs = append(pairs, colorrange.Bounds{
			Lower: colorrange.HSV{H: r[0][0], S: r[0][1], V: r[0][2]},
			Upper: colorrange.HSV{H: r[1][0], S: r[1][1], V: r[1][2]},
		})
	}
	m, err := colorrange.WithBounds(pairs...)
	if err != nil {
		return colorrange.Model{}, false, fmt.Errorf("invalid settings in %s: %w", f.path, err)
	}
	return m, true, nil
}

// Save writes model, replacing the file atomically.
func (f *File) Save(model colorrange.Model) error {
	if model.IsZero() {
		return errors.New("refusing to save an empty colour model")
	}

	rec := record{Custom: entry{
		Description: "Custom HSV range",
		Timestamp:   time.Now().Format(time.RFC3339),
	}}
	for _, r := range model.Ranges() {
		rec.Custom.Ranges = append(rec.Custom.Ranges, [2][3]int{
			{r.Lower.H, r.Lower.S, r.Lower.V},
			{r.Upper.H, r.Upper.S, r.Upper.V},
		})
	}
	if colorrange.Describe(model.Name()) != "" {
		rec.Preset = model.Name()
		rec.Custom.Description = colorrange.Describe(model.Name())
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write settings: %w", err)
	}
	f.log.Info("settings saved", "path", f.path, "model", model.String())
	return nil
}
