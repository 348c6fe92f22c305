package ocr

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeImageFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.jpg")
	if err := os.WriteFile(path, []byte("not-a-real-jpeg"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func writeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recognize.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write tool: %v", err)
	}
	return path
}

func TestCommandRecognizerExtractsStdout(t *testing.T) {
	tool := writeTool(t, `echo "hello from $1"`)
	image := writeImageFixture(t)

	text, err := NewCommand(tool).ExtractText(context.Background(), image)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if text != "hello from "+image {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestCommandRecognizerFailureIsOCRError(t *testing.T) {
	tool := writeTool(t, `echo "engine exploded" >&2; exit 1`)
	image := writeImageFixture(t)

	_, err := NewCommand(tool).ExtractText(context.Background(), image)
	if !errors.Is(err, ErrOCRError) {
		t.Fatalf("expected ErrOCRError, got %v", err)
	}
}

func TestCommandRecognizerMapsErrorCodes(t *testing.T) {
	tool := writeTool(t, `echo "IMAGE_ERROR: truncated file" >&2; exit 1`)
	image := writeImageFixture(t)

	_, err := NewCommand(tool).ExtractText(context.Background(), image)
	if !errors.Is(err, ErrImageError) {
		t.Fatalf("expected ErrImageError from coded stderr, got %v", err)
	}
}

func TestCommandRecognizerMissingImage(t *testing.T) {
	tool := writeTool(t, `echo ok`)

	_, err := NewCommand(tool).ExtractText(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, ErrImageError) {
		t.Fatalf("expected ErrImageError, got %v", err)
	}
}

func TestCommandRecognizerRequiresCommand(t *testing.T) {
	_, err := NewCommand("").ExtractText(context.Background(), writeImageFixture(t))
	if !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
}
