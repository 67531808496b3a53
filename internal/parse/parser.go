// Package parse extracts plain text from uploaded report files.
//
// Supported formats are PDF, DOCX, and plain text (.txt, .md). Table
// content is flattened into pipe-separated text rows so that the chunker
// and the indexes see one continuous text stream per document.
package parse

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	rqerrors "github.com/rigdocs/rigqa/internal/errors"
)

// Document is the parsed form of one uploaded file.
type Document struct {
	// Name is the base filename, used as the document identifier
	// throughout the index.
	Name string

	// Content is the flattened plain text, tables inlined.
	Content string
}

// CommandRunner executes an external command and returns its stdout.
// Injected so tests can stub out pdftotext.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, name, args...).Output()
}

// Parser converts report files into Documents.
type Parser struct {
	runner CommandRunner
}

// New creates a Parser using the system pdftotext binary for PDFs.
func New() *Parser {
	return &Parser{runner: execRunner{}}
}

// NewWithRunner creates a Parser with a custom command runner.
func NewWithRunner(runner CommandRunner) *Parser {
	return &Parser{runner: runner}
}

// SupportedExtensions lists the file extensions ParseFile accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md"}
}

// Supported reports whether the file at path has a parseable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions() {
		if ext == s {
			return true
		}
	}
	return false
}

// ParseFile reads the file at path and returns its flattened text.
// The format is chosen by extension, case-insensitively.
func (p *Parser) ParseFile(ctx context.Context, path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		content string
		err     error
	)
	switch ext {
	case ".txt", ".md":
		content, err = parseText(path)
	case ".docx":
		content, err = parseDOCX(path)
	case ".pdf":
		content, err = p.parsePDF(ctx, path)
	default:
		return Document{}, rqerrors.New(
			rqerrors.ErrCodeUnsupportedFormat,
			fmt.Sprintf("unsupported file format: %s", ext),
			nil,
		).WithDetail("path", path).
			WithSuggestion("supported formats: " + strings.Join(SupportedExtensions(), ", "))
	}
	if err != nil {
		return Document{}, err
	}

	return Document{
		Name:    filepath.Base(path),
		Content: content,
	}, nil
}

func parseText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", rqerrors.New(rqerrors.ErrCodeFileNotFound,
				fmt.Sprintf("file not found: %s", filepath.Base(path)), err)
		}
		return "", rqerrors.New(rqerrors.ErrCodeExtractFailed,
			fmt.Sprintf("reading %s", filepath.Base(path)), err)
	}
	return normalizeNewlines(string(data)), nil
}

// normalizeNewlines maps CRLF and bare CR line endings to LF.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
