package corpus

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "kgchat/backend/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeDOCX(t *testing.T, dir, name string, documentXML string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLoadDocument_Text(t *testing.T) {
	dir := t.TempDir()

	text, err := LoadDocument(writeFile(t, dir, "notes.md", "# Ada\nWrote the first program."))
	require.NoError(t, err)
	assert.Equal(t, "# Ada\nWrote the first program.", text)
}

func TestLoadDocument_JSONIsReindented(t *testing.T) {
	dir := t.TempDir()

	text, err := LoadDocument(writeFile(t, dir, "data.json", `{"name":"Ada","born":1815}`))
	require.NoError(t, err)
	assert.Contains(t, text, "\n  \"name\": \"Ada\"")
	assert.Contains(t, text, "\"born\": 1815")

	_, err = LoadDocument(writeFile(t, dir, "broken.json", `{"name":`))
	require.Error(t, err)
	var readErr *apperrors.ErrDocumentReadFailed
	assert.True(t, errors.As(err, &readErr))
}

func TestLoadDocument_HTMLDropsScripts(t *testing.T) {
	dir := t.TempDir()
	page := `<html><head><title>Engine</title><style>body{color:red}</style></head>
<body><h1>Analytical   Engine</h1>
<script>alert("x")</script>
<p>Designed by Babbage.</p></body></html>`

	text, err := LoadDocument(writeFile(t, dir, "engine.HTML", page))
	require.NoError(t, err)
	assert.Equal(t, "Engine\n\nAnalytical Engine Designed by Babbage.", text)
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color")
}

func TestLoadDocument_DOCX(t *testing.T) {
	dir := t.TempDir()
	xml := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Ada </w:t></w:r><w:r><w:t>Lovelace</w:t></w:r></w:p>
    <w:p><w:r><w:t>Charles Babbage</w:t></w:r></w:p>
  </w:body>
</w:document>`

	text, err := LoadDocument(writeDOCX(t, dir, "people.docx", xml))
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace\nCharles Babbage", text)

	missing := filepath.Join(dir, "empty.docx")
	f, err := os.Create(missing)
	require.NoError(t, err)
	require.NoError(t, zip.NewWriter(f).Close())
	require.NoError(t, f.Close())
	_, err = LoadDocument(missing)
	assert.Error(t, err)
}

func TestLoadDocument_InvalidPDF(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadDocument(writeFile(t, dir, "scan.pdf", "not a pdf"))
	assert.Error(t, err)
}

func TestLoadDocument_Unsupported(t *testing.T) {
	_, err := LoadDocument("image.png")
	var unsupported *apperrors.ErrUnsupportedDocument
	require.True(t, errors.As(err, &unsupported))

	assert.True(t, Supported("a/b/README.MD"))
	assert.False(t, Supported("archive.zip"))
}
