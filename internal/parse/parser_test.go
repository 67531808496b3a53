package parse

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rqerrors "github.com/rigdocs/rigqa/internal/errors"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error

	name string
	args []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func TestSupported(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"report.pdf", true},
		{"report.docx", true},
		{"notes.txt", true},
		{"notes.md", true},
		{"REPORT.PDF", true},
		{"sheet.xlsx", false},
		{"archive.zip", false},
		{"noext", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Supported(tt.path), "path %s", tt.path)
	}
}

func TestParseFile_Text(t *testing.T) {
	// Given: a text file with Windows line endings
	dir := t.TempDir()
	path := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(path, []byte("6-Sept: Circulated WBM.\r\nDrilling continued.\r\n"), 0o644))

	// When: parsing it
	doc, err := New().ParseFile(context.Background(), path)

	// Then: content is newline-normalized and named after the file
	require.NoError(t, err)
	assert.Equal(t, "report.txt", doc.Name)
	assert.Equal(t, "6-Sept: Circulated WBM.\nDrilling continued.\n", doc.Content)
}

func TestParseFile_MarkdownUsesTextPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Summary\n\nTripped out of hole."), 0o644))

	doc, err := New().ParseFile(context.Background(), path)

	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Tripped out of hole.")
}

func TestParseFile_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sheet.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	_, err := New().ParseFile(context.Background(), path)

	require.Error(t, err)
	assert.Equal(t, rqerrors.ErrCodeUnsupportedFormat, rqerrors.GetCode(err))
	assert.Contains(t, err.Error(), ".xlsx")
}

func TestParseFile_MissingFile(t *testing.T) {
	_, err := New().ParseFile(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))

	require.Error(t, err)
	assert.Equal(t, rqerrors.ErrCodeFileNotFound, rqerrors.GetCode(err))
}

// writeDOCX writes a minimal .docx archive containing the given
// word/document.xml payload.
func writeDOCX(t *testing.T, path, payload string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestParseFile_DOCX(t *testing.T) {
	// Given: a docx with two paragraphs and a two-row table
	const payload = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Daily Drilling Report</w:t></w:r></w:p>
    <w:p><w:r><w:t>6-Sept: Circulated WBM, weight 10.2.</w:t></w:r></w:p>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>Time</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Activity</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>06:00</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>Tripped out of hole</w:t></w:r></w:p></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`

	dir := t.TempDir()
	path := filepath.Join(dir, "report.docx")
	writeDOCX(t, path, payload)

	// When: parsing it
	doc, err := New().ParseFile(context.Background(), path)
	require.NoError(t, err)

	// Then: paragraphs come first, then the flattened table
	assert.Contains(t, doc.Content, "Daily Drilling Report")
	assert.Contains(t, doc.Content, "6-Sept: Circulated WBM, weight 10.2.")
	assert.Contains(t, doc.Content, "--- Table ---")
	assert.Contains(t, doc.Content, "Time | Activity")
	assert.Contains(t, doc.Content, "06:00 | Tripped out of hole")

	paraIdx := strings.Index(doc.Content, "Daily Drilling Report")
	tableIdx := strings.Index(doc.Content, "--- Table ---")
	assert.Less(t, paraIdx, tableIdx)
}

func TestParseFile_DOCX_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip archive"), 0o644))

	_, err := New().ParseFile(context.Background(), path)

	require.Error(t, err)
	assert.Equal(t, rqerrors.ErrCodeFileCorrupt, rqerrors.GetCode(err))
}

func TestParseFile_PDF_WithMockRunner(t *testing.T) {
	// Given: a stubbed pdftotext
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	runner := &mockRunner{output: []byte("6-Sept: Circulated WBM.\r\nDrilling continued.\r\n")}
	parser := NewWithRunner(runner)

	// When: parsing the PDF
	doc, err := parser.ParseFile(context.Background(), path)

	// Then: the tool is invoked with -layout and output is normalized
	require.NoError(t, err)
	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, []string{"-layout", path, "-"}, runner.args)
	assert.Equal(t, "6-Sept: Circulated WBM.\nDrilling continued.\n", doc.Content)
}

func TestParseFile_PDF_RunnerError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	runner := &mockRunner{err: errors.New("pdftotext crashed")}

	_, err := NewWithRunner(runner).ParseFile(context.Background(), path)

	require.Error(t, err)
	assert.Equal(t, rqerrors.ErrCodeExtractFailed, rqerrors.GetCode(err))
	assert.Contains(t, err.Error(), "report.pdf")
}
