package parse

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	rqerrors "github.com/rigdocs/rigqa/internal/errors"
)

// documentXML mirrors the subset of word/document.xml we extract.
// encoding/xml matches local element names, so the w: namespace prefix
// is ignored.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
		Tables     []docxTable     `xml:"tbl"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paragraphs []docxParagraph `xml:"p"`
}

// parseDOCX extracts paragraph text followed by flattened tables from a
// .docx archive. Each table is rendered as a "--- Table ---" header and
// one pipe-separated line per row, so date mentions inside tables stay
// searchable as plain text.
func parseDOCX(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", rqerrors.New(rqerrors.ErrCodeFileNotFound,
			fmt.Sprintf("file not found: %s", filepath.Base(path)), err)
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", rqerrors.New(rqerrors.ErrCodeFileCorrupt,
			fmt.Sprintf("%s is not a valid docx archive", filepath.Base(path)), err)
	}
	defer reader.Close()

	raw, err := readZipFile(&reader.Reader, "word/document.xml")
	if err != nil {
		return "", rqerrors.New(rqerrors.ErrCodeFileCorrupt,
			fmt.Sprintf("%s has no word/document.xml", filepath.Base(path)), err)
	}

	var doc documentXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", rqerrors.New(rqerrors.ErrCodeExtractFailed,
			fmt.Sprintf("parsing document.xml in %s", filepath.Base(path)), err)
	}

	var sb strings.Builder
	for _, para := range doc.Body.Paragraphs {
		sb.WriteString(paragraphText(para))
		sb.WriteString("\n")
	}

	for _, table := range doc.Body.Tables {
		sb.WriteString("\n--- Table ---\n")
		for _, row := range table.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cellText(cell))
			}
			sb.WriteString(strings.Join(cells, " | "))
			sb.WriteString("\n")
		}
	}

	return normalizeNewlines(sb.String()), nil
}

func paragraphText(para docxParagraph) string {
	var sb strings.Builder
	for _, run := range para.Runs {
		for _, text := range run.Text {
			sb.WriteString(text.Content)
		}
	}
	return sb.String()
}

func cellText(cell docxCell) string {
	parts := make([]string, 0, len(cell.Paragraphs))
	for _, para := range cell.Paragraphs {
		parts = append(parts, paragraphText(para))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func readZipFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s: not in archive", name)
}
