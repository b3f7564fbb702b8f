package attachment

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LexHelios/Lexworking-sub001/internal/orchestrator"
)

// pngHeader is the 8-byte PNG signature plus an IHDR chunk start.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}

func TestProcessBytes(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		data        []byte
		contentType string
		vision      bool
		mimePrefix  string
	}{
		{"png image", "chart.png", pngHeader, orchestrator.ContentImage, true, "image/png"},
		{"plain text", "notes.txt", []byte("meeting notes\nship on friday\n"), orchestrator.ContentText, false, "text/plain"},
		{"json", "data.json", []byte(`{"a": 1, "b": [1, 2, 3]}`), orchestrator.ContentText, false, "application/json"},
		{"csv", "table.csv", []byte("name,age\nada,36\nalan,41\n"), orchestrator.ContentText, false, "text/csv"},
		{"pdf", "report.pdf", []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"), orchestrator.ContentDocument, false, "application/pdf"},
		{"binary", "blob.bin", []byte{0x00, 0x01, 0x02, 0x03, 0xff, 0xfe}, orchestrator.ContentDocument, false, "application/octet-stream"},
	}

	p := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := p.ProcessBytes(tt.file, tt.data)
			require.NoError(t, err)

			assert.Equal(t, tt.file, rec.Name)
			assert.Equal(t, tt.contentType, rec.ContentType)
			assert.Equal(t, tt.vision, rec.RequiresVisionModel)
			assert.True(t, strings.HasPrefix(rec.MimeType, tt.mimePrefix), "mime %q", rec.MimeType)

			switch tt.contentType {
			case orchestrator.ContentImage:
				assert.Equal(t, base64.StdEncoding.EncodeToString(tt.data), rec.Data.Base64)
				assert.Empty(t, rec.Data.Text)
			case orchestrator.ContentText:
				assert.Equal(t, string(tt.data), rec.Data.Text)
				assert.Empty(t, rec.Data.Base64)
			default:
				assert.Empty(t, rec.Data.Text)
				assert.Empty(t, rec.Data.Base64)
			}
		})
	}
}

func TestProcessBytes_Limits(t *testing.T) {
	p := New(WithMaxSize(16))

	_, err := p.ProcessBytes("empty.txt", nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = p.ProcessBytes("big.txt", []byte(strings.Repeat("x", 17)))
	assert.ErrorIs(t, err, ErrTooLarge)

	rec, err := p.ProcessBytes("ok.txt", []byte("exactly sixteen!"))
	require.NoError(t, err)
	assert.Equal(t, orchestrator.ContentText, rec.ContentType)
}

func TestProcess_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n\nSome *markdown* body.\n"), 0o644))

	rec, err := New().Process(path)
	require.NoError(t, err)
	assert.Equal(t, "README.md", rec.Name)
	assert.Equal(t, orchestrator.ContentText, rec.ContentType)
	assert.Contains(t, rec.Data.Text, "Some *markdown* body.")
}

func TestProcess_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := New().Process(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	_, err = New().Process(dir)
	assert.Error(t, err)

	big := filepath.Join(dir, "big.txt")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("y", 64)), 0o644))
	_, err = New(WithMaxSize(32)).Process(big)
	assert.ErrorIs(t, err, ErrTooLarge)
}
