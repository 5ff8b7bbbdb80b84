// Package textsource extracts plain text from user documents.
package textsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"pdfchat/internal/domain"
)

// Extract reads the file at path and returns its text.
// PDFs are parsed page by page; .txt, .md and .text files are read as UTF-8.
func Extract(ctx context.Context, path string) (domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return extractPDF(ctx, path)
	case ".txt", ".md", ".text":
		f, err := os.Open(path)
		if err != nil {
			return domain.Document{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		doc, err := FromReader(filepath.Base(path), f)
		doc.Path = path
		return doc, err
	default:
		return domain.Document{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedDocument, ext)
	}
}

// FromReader builds a plain text document named name from r.
func FromReader(name string, r io.Reader) (domain.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	return domain.Document{Name: name, Content: string(data), Pages: 1}, nil
}

func extractPDF(ctx context.Context, path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	content, pages, err := parsePDF(ctx, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.Document{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return domain.Document{
		Name:    filepath.Base(path),
		Path:    path,
		Content: content,
		Pages:   pages,
	}, nil
}

// parsePDF concatenates the plain text of every page in order.
// Pages that are empty or cannot be decoded contribute nothing.
func parsePDF(ctx context.Context, r io.ReaderAt, size int64) (text string, pages int, err error) {
	defer func() {
		// the pdf package panics on some malformed inputs
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: malformed pdf: %v", domain.ErrUnsupportedDocument, rec)
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrUnsupportedDocument, err)
	}
	pages = reader.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
	}
	return b.String(), pages, nil
}
