package indexer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/karrick/godirwalk"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/loanassist/pkg/models"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var ErrNoDocuments = errors.New("no documents found")

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Loader reads every document under Root.
type Loader struct {
	Root       string
	Walker     FileSystemWalker
	FileReader FileReader
}

// NewLoader creates a Loader backed by the real file system.
func NewLoader(root string) *Loader {
	return &Loader{
		Root:       root,
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
	}
}

// LoadDocuments loads every document under dir from the real file system.
func LoadDocuments(ctx context.Context, dir string) ([]models.Document, error) {
	return NewLoader(dir).Load(ctx)
}

// Load returns one Document per file in lexical path order. Any file that
// cannot be read or decoded fails the whole load.
func (l *Loader) Load(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	root := filepath.Clean(l.Root)

	err := l.Walker.Walk(l.Root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hidden := filepath.Clean(path) != root && strings.HasPrefix(filepath.Base(path), ".")
			// de is nil when driven by a test walker
			if de != nil && de.IsDir() {
				if hidden {
					return godirwalk.SkipThis
				}
				return nil
			}
			if hidden {
				return nil
			}

			raw, err := l.FileReader.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			text, err := extractText(path, raw)
			if err != nil {
				return fmt.Errorf("decode %s: %w", path, err)
			}

			docs = append(docs, models.Document{Source: rel(l.Root, path), Content: text})
			log.Debug().Str("path", path).Int("bytes", len(raw)).Msg("loaded document")
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("load documents from %s: %w", l.Root, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, l.Root)
	}
	return docs, nil
}

func extractText(path string, raw []byte) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return pdfText(raw)
	}
	return decodeText(raw)
}

// decodeText honours a UTF-8 or UTF-16 byte order mark and otherwise
// requires valid UTF-8.
func decodeText(raw []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), raw)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(out) {
		return "", errors.New("not valid UTF-8 text")
	}
	return string(out), nil
}

func pdfText(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

func rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return r
}
