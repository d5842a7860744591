/**
 * Tesseract Engine - local text line recognition
 *
 * Free, offline OCR using Tesseract through gosseract. Lines come from the
 * text-line iterator so each recognised line maps to one entry of the
 * response; when the iterator yields nothing, the plain text is split on
 * newlines instead.
 */

package ocrserver

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/adverant/nexus/textscan/internal/errors"
)

// TesseractEngine recognises text lines with Tesseract
type TesseractEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	Languages []string // e.g. ["eng"]; empty keeps the Tesseract default
}

// NewTesseractEngine creates a new Tesseract engine
func NewTesseractEngine(cfg *TesseractConfig) *TesseractEngine {
	return &TesseractEngine{
		languages:     cfg.Languages,
		clientFactory: gosseract.NewClient,
	}
}

// TesseractAvailable reports whether the tesseract binary is on PATH.
func TesseractAvailable() bool {
	_, err := exec.LookPath("tesseract")
	return err == nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize returns the non-empty text lines found in image
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := e.clientFactory()
	defer client.Close()

	if len(e.languages) > 0 {
		if err := client.SetLanguage(e.languages...); err != nil {
			return nil, apperrors.NewRecognitionError(e.Name(), fmt.Errorf("set languages: %w", err))
		}
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return nil, apperrors.NewRecognitionError(e.Name(), fmt.Errorf("set image: %w", err))
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err == nil && len(boxes) > 0 {
		lines := make([]string, 0, len(boxes))
		for _, b := range boxes {
			lines = appendLine(lines, b.Word)
		}
		if len(lines) > 0 {
			return lines, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := client.Text()
	if err != nil {
		return nil, apperrors.NewRecognitionError(e.Name(), err)
	}
	return splitLines(text), nil
}

// splitLines breaks plain text into trimmed, non-empty lines
func splitLines(text string) []string {
	lines := []string{}
	for _, l := range strings.Split(text, "\n") {
		lines = appendLine(lines, l)
	}
	return lines
}

func appendLine(lines []string, l string) []string {
	l = strings.TrimSpace(l)
	if l == "" {
		return lines
	}
	return append(lines, l)
}
