package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/jasonroberts79/cyberpunk-looter/internal/knowledge"
	kberr "github.com/jasonroberts79/cyberpunk-looter/internal/pkg/errors"
)

// Supported reports whether the corpus walker should pick the file up at
// all. Everything else is skipped with a warning, never a fatal error.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".pdf":
		return true
	default:
		return false
	}
}

// Load reads one corpus file and extracts its text, dispatching on
// extension with a magic-byte check for PDFs (files claiming .pdf without a
// %PDF header are corrupt, not mislabeled text).
func Load(path string) (knowledge.Document, error) {
	doc := knowledge.Document{
		Path:     path,
		Filename: filepath.Base(path),
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".md", ".markdown":
		doc.Format = "markdown"
	case ".txt":
		doc.Format = "text"
	case ".pdf":
		doc.Format = "pdf"
	default:
		return doc, fmt.Errorf("%w: %s", kberr.ErrUnsupportedFormat, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("%w: read %s: %v", kberr.ErrLoadFailure, path, err)
	}
	if len(data) == 0 {
		return doc, fmt.Errorf("%w: empty file %s", kberr.ErrLoadFailure, path)
	}

	if doc.Format == "pdf" {
		if !isPDF(data) {
			return doc, fmt.Errorf("%w: %s claims pdf but missing %%PDF header", kberr.ErrLoadFailure, path)
		}
		text, pages, err := extractPDF(data)
		if err != nil {
			return doc, fmt.Errorf("%w: %s: %v", kberr.ErrLoadFailure, path, err)
		}
		if text == "" {
			return doc, fmt.Errorf("%w: %s contains no extractable text", kberr.ErrLoadFailure, path)
		}
		doc.Text = text
		doc.Pages = pages
		return doc, nil
	}

	doc.Text = normalizeText(string(data))
	if doc.Text == "" {
		return doc, fmt.Errorf("%w: %s contains no text", kberr.ErrLoadFailure, path)
	}
	return doc, nil
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func extractPDF(data []byte) (string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", 0, fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", 0, fmt.Errorf("pdf read: %w", err)
	}
	return normalizeText(string(b)), r.NumPage(), nil
}

// normalizeText collapses runs of whitespace but keeps paragraph breaks so
// chunk boundaries stay readable.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	paras := strings.Split(s, "\n\n")
	out := make([]string, 0, len(paras))
	for _, p := range paras {
		fields := strings.Fields(p)
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, "\n\n")
}
