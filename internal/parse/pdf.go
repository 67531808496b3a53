package parse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	rqerrors "github.com/rigdocs/rigqa/internal/errors"
)

const pdfToTextBin = "pdftotext"

// CheckPDFSupport reports whether the pdftotext binary is on PATH.
// Callers can probe this before a batch ingest to fail early.
func CheckPDFSupport() error {
	if _, err := exec.LookPath(pdfToTextBin); err != nil {
		return rqerrors.New(rqerrors.ErrCodeExtractFailed,
			"pdftotext not found on PATH", err).
			WithSuggestion("install poppler: apt install poppler-utils (Linux) or brew install poppler (macOS)")
	}
	return nil
}

// parsePDF extracts text from a PDF via pdftotext. The -layout flag
// preserves column positions, which keeps tabular report data readable
// as aligned text rows.
func (p *Parser) parsePDF(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", rqerrors.New(rqerrors.ErrCodeFileNotFound,
			fmt.Sprintf("file not found: %s", filepath.Base(path)), err)
	}

	out, err := p.runner.Run(ctx, pdfToTextBin, "-layout", path, "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", rqerrors.New(rqerrors.ErrCodeExtractFailed,
				"pdftotext not found on PATH", err).
				WithSuggestion("install poppler: apt install poppler-utils (Linux) or brew install poppler (macOS)")
		}
		return "", rqerrors.New(rqerrors.ErrCodeExtractFailed,
			fmt.Sprintf("pdftotext failed for %s", filepath.Base(path)), err)
	}

	return normalizeNewlines(string(out)), nil
}
