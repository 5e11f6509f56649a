package extractor

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractPlainText(t *testing.T) {
	e := NewDocumentExtractor(testLogger())

	pages, err := e.Extract([]byte("hello world\nsecond line"), "txt")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].PageNo)
	assert.Equal(t, MethodPlainText, pages[0].Method)
	assert.Equal(t, "hello world\nsecond line", pages[0].Text)
}

func TestExtractPlainTextEmpty(t *testing.T) {
	e := NewDocumentExtractor(testLogger())

	_, err := e.Extract([]byte("   \n\t "), "txt")
	assert.Error(t, err)
}

func TestExtractHTMLStripsMarkup(t *testing.T) {
	e := NewDocumentExtractor(testLogger())

	html := `<html><head><style>p{color:red}</style></head>
		<body><h1>Minutes</h1><p>Review the budget.</p>
		<script>alert("x")</script></body></html>`

	pages, err := e.Extract([]byte(html), "html")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, MethodHTML, pages[0].Method)
	assert.Contains(t, pages[0].Text, "Minutes")
	assert.Contains(t, pages[0].Text, "Review the budget.")
	assert.NotContains(t, pages[0].Text, "alert")
	assert.NotContains(t, pages[0].Text, "color:red")
}

func TestExtractUnsupportedType(t *testing.T) {
	e := NewDocumentExtractor(testLogger())

	_, err := e.Extract([]byte("data"), "xlsx")
	assert.ErrorContains(t, err, "unsupported file type")
}

func TestNormalizeFileType(t *testing.T) {
	assert.Equal(t, "pdf", normalizeFileType("application/pdf"))
	assert.Equal(t, "pdf", normalizeFileType(".PDF"))
	assert.Equal(t, "docx", normalizeFileType("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.Equal(t, "txt", normalizeFileType("text/plain"))
	assert.Equal(t, "html", normalizeFileType("HTML"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "abc", Sanitize("a\x00bc"))
	assert.Equal(t, "ok", Sanitize("ok"))

	out := Sanitize(string([]byte{0x61, 0xff, 0x62}))
	assert.Equal(t, "a�b", out)
}

func TestJoinPages(t *testing.T) {
	pages, err := NewDocumentExtractor(testLogger()).Extract([]byte("one"), "txt")
	require.NoError(t, err)

	pages = append(pages, pages[0])
	pages[1].Text = " two "
	assert.Equal(t, "one\n\ntwo", JoinPages(pages))
}
