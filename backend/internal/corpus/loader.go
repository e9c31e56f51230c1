// Package corpus reads the document corpus, keeps a chunk index over it for
// retrieval and runs background ingestion jobs.
package corpus

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/beevik/etree"
	jsoniter "github.com/json-iterator/go"
	"github.com/ledongthuc/pdf"

	apperrors "kgchat/backend/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Loader extracts the text of one document
type Loader interface {
	Load(path string) (string, error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(path string) (string, error)

// Load implements Loader
func (f LoaderFunc) Load(path string) (string, error) { return f(path) }

var loaders = map[string]Loader{
	".txt":      LoaderFunc(loadText),
	".md":       LoaderFunc(loadText),
	".markdown": LoaderFunc(loadText),
	".json":     LoaderFunc(loadJSON),
	".html":     LoaderFunc(loadHTML),
	".htm":      LoaderFunc(loadHTML),
	".pdf":      LoaderFunc(loadPDF),
	".docx":     LoaderFunc(loadDOCX),
}

// Supported reports whether path has an extension the corpus can read
func Supported(path string) bool {
	_, ok := loaders[strings.ToLower(filepath.Ext(path))]
	return ok
}

// LoadDocument extracts the text of path with the loader for its extension
func LoadDocument(path string) (string, error) {
	loader, ok := loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", apperrors.NewUnsupportedDocument(path)
	}
	text, err := loader.Load(path)
	if err != nil {
		return "", apperrors.NewDocumentReadFailed(path, err)
	}
	return text, nil
}

func loadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

// loadJSON re-indents the document so keys and values tokenize cleanly
func loadJSON(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var content any
	if err := json.Unmarshal(data, &content); err != nil {
		return "", fmt.Errorf("invalid json: %w", err)
	}
	out, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func loadHTML(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	if text := strings.Join(strings.Fields(body.Text()), " "); text != "" {
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}
	return strings.TrimSpace(buf.String()), nil
}

// loadDOCX joins the runs of every paragraph in word/document.xml
func loadDOCX(path string) (string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx zip: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("invalid docx: word/document.xml not found")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(rc); err != nil {
		return "", fmt.Errorf("failed to parse document.xml: %w", err)
	}

	var paragraphs []string
	for _, p := range doc.FindElements("//w:p") {
		var sb strings.Builder
		for _, t := range p.FindElements(".//w:t") {
			sb.WriteString(t.Text())
		}
		paragraphs = append(paragraphs, sb.String())
	}
	return strings.TrimSpace(strings.Join(paragraphs, "\n")), nil
}
