// Package ocr extracts text from answer images.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrUnavailable is returned when the OCR binary is not installed.
var ErrUnavailable = errors.New("tesseract not found in PATH")

// Extractor turns an image into text.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

// Tesseract runs the tesseract command line tool.
type Tesseract struct {
	Binary  string
	Lang    string
	Timeout time.Duration
}

func NewTesseract(lang string, timeout time.Duration) *Tesseract {
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{Binary: "tesseract", Lang: lang, Timeout: timeout}
}

// Available reports whether the binary can be found.
func (t *Tesseract) Available() bool {
	_, err := exec.LookPath(t.binary())
	return err == nil
}

func (t *Tesseract) Extract(ctx context.Context, r io.Reader) (string, error) {
	f, err := os.CreateTemp("", "answer-*.img")
	if err != nil {
		return "", err
	}
	defer func() { f.Close(); os.Remove(f.Name()) }()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return t.exec(ctx, f.Name())
}

func (t *Tesseract) binary() string {
	if t.Binary == "" {
		return "tesseract"
	}
	return t.Binary
}

func (t *Tesseract) exec(ctx context.Context, inPath string) (string, error) {
	bin, err := exec.LookPath(t.binary())
	if err != nil {
		return "", ErrUnavailable
	}
	args := []string{inPath, "stdout"}
	if t.Lang != "" {
		args = append(args, "-l", t.Lang)
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("tesseract: %s", msg)
	}
	return strings.TrimSpace(out.String()), nil
}
