package loader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	kberr "github.com/jasonroberts79/cyberpunk-looter/internal/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSupported(t *testing.T) {
	cases := map[string]bool{
		"notes.md":       true,
		"NOTES.MD":       true,
		"guide.markdown": true,
		"plain.txt":      true,
		"manual.pdf":     true,
		"image.png":      false,
		"archive.tar.gz": false,
		"noext":          false,
	}
	for name, want := range cases {
		if got := Supported(name); got != want {
			t.Fatalf("Supported(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestLoadMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lore.md", "# Title\r\n\r\nFirst  paragraph\twith   gaps.\r\n\r\nSecond paragraph.")

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Format != "markdown" {
		t.Fatalf("Format = %q", doc.Format)
	}
	if doc.Filename != "lore.md" {
		t.Fatalf("Filename = %q", doc.Filename)
	}
	if doc.Text != "# Title\n\nFirst paragraph with gaps.\n\nSecond paragraph." {
		t.Fatalf("Text = %q", doc.Text)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.csv", "a,b,c")

	_, err := Load(path)
	if !errors.Is(err, kberr.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.md", "")

	_, err := Load(path)
	if !errors.Is(err, kberr.ErrLoadFailure) {
		t.Fatalf("expected ErrLoadFailure, got %v", err)
	}
}

func TestLoadCorruptPDF(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fake.pdf", "this is not a pdf at all")

	_, err := Load(path)
	if !errors.Is(err, kberr.ErrLoadFailure) {
		t.Fatalf("expected ErrLoadFailure for missing %%PDF header, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "gone.md"))
	if !errors.Is(err, kberr.ErrLoadFailure) {
		t.Fatalf("expected ErrLoadFailure, got %v", err)
	}
}

func TestNormalizeTextKeepsParagraphs(t *testing.T) {
	in := "line one\nline two\n\n\n\nnext para"
	got := normalizeText(in)
	if got != "line one line two\n\nnext para" {
		t.Fatalf("normalizeText = %q", got)
	}
}
