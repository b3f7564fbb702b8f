// Package attachment turns uploaded files into orchestrator FileRecords.
// Images are base64 encoded for vision models and text formats are inlined.
// Binary documents (PDF, DOCX) are typed but not extracted.
package attachment

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/LexHelios/Lexworking-sub001/internal/orchestrator"
)

// MaxFileSize is the largest attachment accepted.
const MaxFileSize = 20 << 20

var (
	// ErrTooLarge is returned for files above MaxFileSize.
	ErrTooLarge = errors.New("attachment exceeds size limit")

	// ErrEmpty is returned for zero-length files.
	ErrEmpty = errors.New("attachment is empty")
)

// textExtensions are treated as text regardless of the sniffed type.
var textExtensions = map[string]bool{
	".md": true, ".markdown": true, ".txt": true, ".csv": true, ".tsv": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".log": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".java": true,
	".c": true, ".cpp": true, ".rs": true, ".rb": true, ".sh": true, ".sql": true,
}

// Processor builds FileRecords. The zero value is not usable; use New.
type Processor struct {
	maxSize int64
}

// Option configures a Processor.
type Option func(*Processor)

// WithMaxSize overrides MaxFileSize.
func WithMaxSize(n int64) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxSize = n
		}
	}
}

// New creates a Processor.
func New(opts ...Option) *Processor {
	p := &Processor{maxSize: MaxFileSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process reads and classifies the file at path.
func (p *Processor) Process(path string) (orchestrator.FileRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return orchestrator.FileRecord{}, fmt.Errorf("stat attachment: %w", err)
	}
	if info.IsDir() {
		return orchestrator.FileRecord{}, fmt.Errorf("attachment %s is a directory", path)
	}
	if info.Size() > p.maxSize {
		return orchestrator.FileRecord{}, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrTooLarge, filepath.Base(path), info.Size(), p.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.FileRecord{}, fmt.Errorf("read attachment: %w", err)
	}
	return p.ProcessBytes(filepath.Base(path), data)
}

// ProcessBytes classifies in-memory content. name is used for extension
// hints and is reported back in the record.
func (p *Processor) ProcessBytes(name string, data []byte) (orchestrator.FileRecord, error) {
	if len(data) == 0 {
		return orchestrator.FileRecord{}, ErrEmpty
	}
	if int64(len(data)) > p.maxSize {
		return orchestrator.FileRecord{}, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrTooLarge, name, len(data), p.maxSize)
	}

	mtype := mimetype.Detect(data)
	rec := orchestrator.FileRecord{
		Name:     name,
		MimeType: mtype.String(),
	}

	switch {
	case strings.HasPrefix(mtype.String(), "image/"):
		rec.ContentType = orchestrator.ContentImage
		rec.RequiresVisionModel = true
		rec.Data.Base64 = base64.StdEncoding.EncodeToString(data)
	case isText(mtype, name) && utf8.Valid(data):
		rec.ContentType = orchestrator.ContentText
		rec.Data.Text = string(data)
	default:
		rec.ContentType = orchestrator.ContentDocument
	}
	return rec, nil
}

// isText walks the sniffed type's ancestry; JSON, CSV and HTML all descend
// from text/plain.
func isText(mtype *mimetype.MIME, name string) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}
