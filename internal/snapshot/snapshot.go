// Package snapshot writes the users and chapters documents to disk, on demand
// or on a cron schedule.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/icapexam/internal/model"
)

// Format is a document serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts "json", "yaml" or "yml".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or yaml)", s)
}

// Encode writes doc to w in the given format.
func Encode(w io.Writer, doc any, f Format) error {
	switch f {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// WriteFile replaces path with the encoded document. Readers never see a
// partially written file.
func WriteFile(path string, doc any, f Format) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, doc, f); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Source provides the documents to snapshot.
type Source interface {
	ExportUsers() (model.UsersDocument, error)
	ExportChapters() (model.ChaptersDocument, error)
}

// Writer snapshots both documents to fixed paths.
type Writer struct {
	src          Source
	usersPath    string
	chaptersPath string
	format       Format
}

func NewWriter(src Source, usersPath, chaptersPath string, f Format) *Writer {
	return &Writer{src: src, usersPath: usersPath, chaptersPath: chaptersPath, format: f}
}

// Run writes both documents. An empty path skips that document.
func (w *Writer) Run() error {
	if w.usersPath != "" {
		users, err := w.src.ExportUsers()
		if err != nil {
			return err
		}
		if err := WriteFile(w.usersPath, users, w.format); err != nil {
			return fmt.Errorf("write users snapshot: %w", err)
		}
	}
	if w.chaptersPath != "" {
		chapters, err := w.src.ExportChapters()
		if err != nil {
			return err
		}
		if err := WriteFile(w.chaptersPath, chapters, w.format); err != nil {
			return fmt.Errorf("write chapters snapshot: %w", err)
		}
	}
	return nil
}

// Schedule registers w on a cron spec and starts the scheduler. The caller
// stops it with Stop.
func Schedule(spec string, w *Writer) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := w.Run(); err != nil {
			slog.Error("snapshot failed", "error", err)
			return
		}
		slog.Info("snapshot written", "users", w.usersPath, "chapters", w.chaptersPath)
	})
	if err != nil {
		return nil, fmt.Errorf("parse snapshot schedule %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
