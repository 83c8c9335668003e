package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/types"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExtractMarkdownKeepsMarkers(t *testing.T) {
	content := "# Title\n\nSome body text.\n\n## Section\n\nMore text."
	doc := &types.Document{
		ID:       uuid.New(),
		Title:    "readme",
		DocType:  types.DocTypeMarkdown,
		FilePath: writeTempFile(t, "readme.md", content),
	}

	text, err := New().Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, content, text)
}

func TestExtractUnsupportedTypeFails(t *testing.T) {
	doc := &types.Document{ID: uuid.New(), DocType: "xlsx"}

	_, err := New().Extract(context.Background(), doc)
	require.Error(t, err)
	assert.IsType(t, types.UnsupportedTypeError{}, err)
}

func TestExtractMissingFileFails(t *testing.T) {
	doc := &types.Document{
		ID:       uuid.New(),
		DocType:  types.DocTypeText,
		FilePath: "/nonexistent/file.txt",
	}

	_, err := New().Extract(context.Background(), doc)
	require.Error(t, err)
	assert.IsType(t, types.SourceUnavailableError{}, err)
}

func TestExtractFormRendersSortedKeyValues(t *testing.T) {
	doc := &types.Document{
		ID:      uuid.New(),
		DocType: types.DocTypeForm,
		Metadata: map[string]string{
			"name":  "Ada",
			"email": "ada@example.com",
			"error": "should not appear",
		},
	}

	text, err := New().Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "email: ada@example.com\nname: Ada\n", text)
}

func TestExtractHTMLStripsMarkupAndScripts(t *testing.T) {
	page := `<html><head><style>body{color:red}</style></head>
<body><h1>Welcome</h1><script>alert("hi")</script><p>Plain   content here.</p></body></html>`
	doc := &types.Document{
		ID:       uuid.New(),
		DocType:  types.DocTypeHTML,
		FilePath: writeTempFile(t, "page.html", page),
	}

	text, err := New().Extract(context.Background(), doc)
	require.NoError(t, err)

	assert.Contains(t, text, "Welcome")
	assert.Contains(t, text, "Plain content here.")
	assert.NotContains(t, text, "<h1>")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color:red")
}

func TestExtractHTMLMissingFileFails(t *testing.T) {
	doc := &types.Document{
		ID:       uuid.New(),
		DocType:  types.DocTypeHTML,
		FilePath: "/nonexistent/page.html",
	}

	_, err := New().Extract(context.Background(), doc)
	require.Error(t, err)
	assert.IsType(t, types.SourceUnavailableError{}, err)
}

func TestExtractCorruptDocxDegradesToPlaceholder(t *testing.T) {
	doc := &types.Document{
		ID:       uuid.New(),
		Title:    "broken",
		DocType:  types.DocTypeDOCX,
		FilePath: writeTempFile(t, "broken.docx", "not a zip archive"),
	}

	text, err := New().Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Contains(t, text, "Error extracting text from docx document 'broken'")
}

func TestExtractCorruptPDFDegradesToPlaceholder(t *testing.T) {
	doc := &types.Document{
		ID:       uuid.New(),
		Title:    "mangled",
		DocType:  types.DocTypePDF,
		FilePath: writeTempFile(t, "mangled.pdf", "%PDF-1.4 but the rest is garbage"),
	}

	text, err := New().Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Contains(t, text, "Error extracting text from pdf document 'mangled'")
}

func TestContentStreamTextJoinsStringLiterals(t *testing.T) {
	stream := []byte(`BT /F1 12 Tf (Hello) Tj ( world) Tj (\(escaped\)) Tj ET`)
	assert.Equal(t, "Hello  world (escaped)", contentStreamText(stream))
}
