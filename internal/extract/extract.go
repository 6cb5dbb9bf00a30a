// ABOUTME: Text-extraction collaborator seam for the document path.
// ABOUTME: File-format specifics live behind this interface, not in the engine.

// Package extract declares how document text reaches the engine. The
// engine only needs a string back; parsing PDFs, office formats and
// archives is someone else's job behind this interface.
package extract

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Extractor turns a downloaded file into plain text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// maxPlainBytes caps how much of a file the plain extractor reads.
const maxPlainBytes = 1 << 20

// Plain reads text-like files verbatim, capped at 1 MiB. It is the
// default extractor; richer formats need an external implementation.
type Plain struct{}

var _ Extractor = Plain{}

func (Plain) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening document: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxPlainBytes))
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	return string(data), nil
}
