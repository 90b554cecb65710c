package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog"
	"github.com/seanblong/loanassist/pkg/models"
)

func init() {
	// Suppress logs during testing
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// MockEmbedder implements ai.Embedder for testing
type MockEmbedder struct {
	EmbedDocumentFunc func(ctx context.Context, text string) ([]float32, error)
	calls             atomic.Int32
}

func (m *MockEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.EmbedDocumentFunc != nil {
		return m.EmbedDocumentFunc(ctx, text)
	}
	return []float32{float32(len(text)), 1}, nil
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return m.EmbedDocument(ctx, text)
}

// MockFileSystemWalker implements FileSystemWalker for testing
type MockFileSystemWalker struct {
	FilesToProcess []string // List of file paths to process
	WalkError      error    // Error to return from Walk
}

func (m *MockFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	if m.WalkError != nil {
		return m.WalkError
	}
	for _, filePath := range m.FilesToProcess {
		// We can't easily build a godirwalk.Dirent, so call back with nil
		if err := options.Callback(filePath, nil); err != nil {
			return err
		}
	}
	return nil
}

// MockFileReader implements FileReader for testing
type MockFileReader struct {
	Files map[string][]byte
	Err   map[string]error
}

func (m *MockFileReader) ReadFile(filename string) ([]byte, error) {
	if err, ok := m.Err[filename]; ok {
		return nil, err
	}
	if b, ok := m.Files[filename]; ok {
		return b, nil
	}
	return nil, os.ErrNotExist
}

func TestLoader_WithMocks(t *testing.T) {
	l := &Loader{
		Root: "/data",
		Walker: &MockFileSystemWalker{FilesToProcess: []string{
			"/data/home-loan.txt",
			"/data/.DS_Store",
			"/data/policies/gold.md",
		}},
		FileReader: &MockFileReader{Files: map[string][]byte{
			"/data/home-loan.txt":    []byte("Home loans up to 30 years."),
			"/data/.DS_Store":        {0xff, 0xfe, 0x00},
			"/data/policies/gold.md": []byte("# Gold loans"),
		}},
	}

	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []models.Document{
		{Source: "home-loan.txt", Content: "Home loans up to 30 years."},
		{Source: filepath.Join("policies", "gold.md"), Content: "# Gold loans"},
	}
	if !reflect.DeepEqual(docs, want) {
		t.Errorf("Unexpected documents:\n got %+v\nwant %+v", docs, want)
	}
}

func TestLoader_Errors(t *testing.T) {
	walkErr := errors.New("permission denied")

	tests := []struct {
		name    string
		loader  *Loader
		wantErr error
		wantMsg string
	}{
		{
			name: "walk failure",
			loader: &Loader{
				Root:       "/data",
				Walker:     &MockFileSystemWalker{WalkError: walkErr},
				FileReader: &MockFileReader{},
			},
			wantErr: walkErr,
		},
		{
			name: "read failure",
			loader: &Loader{
				Root:       "/data",
				Walker:     &MockFileSystemWalker{FilesToProcess: []string{"/data/a.txt"}},
				FileReader: &MockFileReader{Err: map[string]error{"/data/a.txt": os.ErrPermission}},
			},
			wantErr: os.ErrPermission,
		},
		{
			name: "invalid utf-8",
			loader: &Loader{
				Root:       "/data",
				Walker:     &MockFileSystemWalker{FilesToProcess: []string{"/data/a.bin"}},
				FileReader: &MockFileReader{Files: map[string][]byte{"/data/a.bin": {0xc3, 0x28, 0xa0}}},
			},
			wantMsg: "decode /data/a.bin",
		},
		{
			name: "broken pdf",
			loader: &Loader{
				Root:       "/data",
				Walker:     &MockFileSystemWalker{FilesToProcess: []string{"/data/a.pdf"}},
				FileReader: &MockFileReader{Files: map[string][]byte{"/data/a.pdf": []byte("not a pdf")}},
			},
			wantMsg: "open pdf",
		},
		{
			name: "empty directory",
			loader: &Loader{
				Root:       "/data",
				Walker:     &MockFileSystemWalker{},
				FileReader: &MockFileReader{},
			},
			wantErr: ErrNoDocuments,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := tt.loader.Load(context.Background())
			if err == nil {
				t.Fatalf("Expected error, got documents %+v", docs)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}

func TestLoader_RealDirectory(t *testing.T) {
	root := t.TempDir()
	mustWrite := func(rel string, data []byte) {
		t.Helper()
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	mustWrite("b.txt", []byte("second"))
	mustWrite("a.txt", []byte("\xef\xbb\xbffirst with BOM"))
	mustWrite("sub/c.txt", []byte("third"))
	mustWrite(".hidden", []byte("skip"))
	mustWrite(".git/config", []byte("skip"))
	// UTF-16LE with BOM: "hi"
	mustWrite("utf16.txt", []byte{0xff, 0xfe, 'h', 0x00, 'i', 0x00})

	docs, err := NewLoader(root).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := make([]string, 0, len(docs))
	for _, d := range docs {
		got = append(got, d.Source+"="+d.Content)
	}
	want := []string{
		"a.txt=first with BOM",
		"b.txt=second",
		filepath.Join("sub", "c.txt") + "=third",
		"utf16.txt=hi",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unexpected documents:\n got %v\nwant %v", got, want)
	}

	again, err := LoadDocuments(context.Background(), root)
	if err != nil || !reflect.DeepEqual(docs, again) {
		t.Errorf("Expected repeated loads to match, err=%v", err)
	}
}

// buildPDF returns a one-page PDF showing text in Helvetica, with a correct
// cross-reference table.
func buildPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func TestLoader_PDF(t *testing.T) {
	l := &Loader{
		Root: "/data",
		Walker: &MockFileSystemWalker{FilesToProcess: []string{
			"/data/gold-loan.PDF",
			"/data/notes.txt",
		}},
		FileReader: &MockFileReader{Files: map[string][]byte{
			"/data/gold-loan.PDF": buildPDF("Gold loan tenure is 12 months"),
			"/data/notes.txt":     []byte("plain"),
		}},
	}

	docs, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %+v", docs)
	}
	if docs[0].Source != "gold-loan.PDF" {
		t.Errorf("Expected pdf source first, got %q", docs[0].Source)
	}
	if !strings.Contains(docs[0].Content, "Gold loan tenure is 12 months") {
		t.Errorf("Expected extracted pdf text, got %q", docs[0].Content)
	}
	if strings.Contains(docs[0].Content, "endstream") || strings.Contains(docs[0].Content, "%PDF") {
		t.Errorf("Expected text only, got raw pdf bytes %q", docs[0].Content)
	}
}

func TestLoader_MissingDirectory(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "missing")).Load(context.Background())
	if err == nil {
		t.Fatal("Expected error for missing directory")
	}
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &Loader{
		Root:       "/data",
		Walker:     &MockFileSystemWalker{FilesToProcess: []string{"/data/a.txt"}},
		FileReader: &MockFileReader{Files: map[string][]byte{"/data/a.txt": []byte("x")}},
	}
	if _, err := l.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func testChunks(n int) []models.Chunk {
	out := make([]models.Chunk, n)
	for i := range out {
		out[i] = models.Chunk{
			ID:      fmt.Sprintf("c%d", i),
			Source:  "doc.txt",
			Index:   i,
			Content: strings.Repeat("x", i+1),
		}
	}
	return out
}

func TestBuild_PairsVectorsWithChunks(t *testing.T) {
	chunks := testChunks(20)
	emb := &MockEmbedder{}

	idx, err := Build(context.Background(), chunks, emb, 4)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if idx.Len() != len(chunks) {
		t.Fatalf("Expected %d entries, got %d", len(chunks), idx.Len())
	}
	if got := emb.calls.Load(); got != int32(len(chunks)) {
		t.Errorf("Expected %d embed calls, got %d", len(chunks), got)
	}

	// The mock embeds length into the first component, so the query
	// [len, 1] must rank its own chunk first.
	res, err := idx.Search(context.Background(), []float32{7, 1}, 1)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res[0].Chunk.ID != "c6" {
		t.Errorf("Expected chunk c6 paired with its vector, got %s", res[0].Chunk.ID)
	}
}

func TestBuild_EmbeddingFailureAborts(t *testing.T) {
	boom := errors.New("quota exceeded")
	emb := &MockEmbedder{
		EmbedDocumentFunc: func(ctx context.Context, text string) ([]float32, error) {
			if len(text) == 5 {
				return nil, boom
			}
			return []float32{1, 1}, nil
		},
	}

	idx, err := Build(context.Background(), testChunks(10), emb, 2)
	if !errors.Is(err, boom) {
		t.Fatalf("Expected embedding error, got %v", err)
	}
	if idx != nil {
		t.Error("Expected no index on failure")
	}
}

func TestBuild_InconsistentDimensions(t *testing.T) {
	emb := &MockEmbedder{
		EmbedDocumentFunc: func(ctx context.Context, text string) ([]float32, error) {
			if len(text) == 1 {
				return []float32{1}, nil
			}
			return []float32{1, 2}, nil
		},
	}
	if _, err := Build(context.Background(), testChunks(3), emb, 1); err == nil {
		t.Fatal("Expected dimension error")
	}
}

func TestBuild_RespectsWorkerLimit(t *testing.T) {
	var mu sync.Mutex
	var active, peak int
	emb := &MockEmbedder{
		EmbedDocumentFunc: func(ctx context.Context, text string) ([]float32, error) {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			defer func() {
				mu.Lock()
				active--
				mu.Unlock()
			}()
			return []float32{1}, nil
		},
	}

	if _, err := Build(context.Background(), testChunks(50), emb, 3); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if peak > 3 {
		t.Errorf("Expected at most 3 concurrent embed calls, saw %d", peak)
	}
}

func TestDefaultWorkers(t *testing.T) {
	if n := DefaultWorkers(); n < 1 || n > 8 {
		t.Errorf("Expected 1..8 workers, got %d", n)
	}
}
