package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// commandRecognizer shells out to an external recognition tool. The tool
// is invoked with the image path as its final argument and must print the
// extracted text on stdout.
type commandRecognizer struct {
	command string
	args    []string
}

// NewCommand returns a recognizer backed by an external command line tool
// (tesseract-style). Extra args are passed before the image path.
func NewCommand(command string, args ...string) Recognizer {
	return &commandRecognizer{command: command, args: args}
}

func (r *commandRecognizer) ExtractText(ctx context.Context, imagePath string) (string, error) {
	if strings.TrimSpace(r.command) == "" {
		return "", fmt.Errorf("%w: recognizer command not configured", ErrInvalidArgs)
	}
	if _, err := os.Stat(imagePath); err != nil {
		return "", fmt.Errorf("%w: %s", ErrImageError, imagePath)
	}

	args := append(append([]string{}, r.args...), imagePath)
	cmd := exec.CommandContext(ctx, r.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		// Tools that speak the provider protocol prefix stderr with an
		// error code, e.g. "IMAGE_ERROR: truncated file".
		if code, message, ok := strings.Cut(detail, ":"); ok {
			code = strings.TrimSpace(code)
			if code == "INVALID_ARGS" || code == "IMAGE_ERROR" || code == "OCR_ERROR" {
				return "", CodeError(code, strings.TrimSpace(message))
			}
		}
		return "", fmt.Errorf("%w: %s", ErrOCRError, detail)
	}
	return strings.TrimSpace(stdout.String()), nil
}
