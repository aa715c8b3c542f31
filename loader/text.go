package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// removedSelectors are stripped from HTML before its text is taken.
const removedSelectors = "script, style, nav, header, footer, noscript, iframe"

// LoadText reads the document at path as plain text. Markdown and text files
// are returned verbatim; HTML is reduced to the text of its body.
func LoadText(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if ext == ".html" || ext == ".htm" {
		return HTMLText(bytes.NewReader(data))
	}
	return string(data), nil
}

// Supported reports whether LoadText can read path.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt", ".html", ".htm":
		return true
	}
	return false
}

// HTMLText returns the whitespace-normalized body text of an HTML document.
func HTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find(removedSelectors).Remove()
	text := strings.TrimSpace(doc.Find("body").Text())
	return strings.Join(strings.Fields(text), " "), nil
}
