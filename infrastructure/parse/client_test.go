package parse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)

	c, err := NewClient(Config{APIKey: "llx-test"})
	require.NoError(t, err)
	assert.Equal(t, defaultWorkers, c.workers)
}

func TestSplitPages(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     []string
	}{
		{
			name:     "three pages",
			markdown: "# Page 1\ntext\n---\n# Page 2\n---\n# Page 3",
			want:     []string{"# Page 1\ntext", "# Page 2", "# Page 3"},
		},
		{
			name:     "blank pages dropped",
			markdown: "content\n---\n   \n---\nmore",
			want:     []string{"content", "more"},
		},
		{
			name:     "no separator",
			markdown: "single page",
			want:     []string{"single page"},
		},
		{
			name:     "empty input",
			markdown: "",
			want:     []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPages(tt.markdown))
		})
	}
}

func TestClientParse(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer llx-test" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, header, err := r.FormFile("file")
			require.NoError(t, err)
			assert.Equal(t, "filing.pdf", header.Filename)
			w.Write([]byte(`{"id":"job-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/job/job-1":
			if polls.Add(1) < 2 {
				w.Write([]byte(`{"status":"PENDING"}`))
				return
			}
			w.Write([]byte(`{"status":"SUCCESS"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/job/job-1/result/markdown":
			w.Write([]byte(`{"markdown":"# Income\nNet income was $2.1B.\n---\n# Notes"}`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	doc := filepath.Join(t.TempDir(), "filing.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("%PDF-1.4 stub"), 0o600))

	c, err := NewClient(Config{
		APIKey:       "llx-test",
		BaseURL:      srv.URL,
		PollInterval: time.Millisecond,
	})
	require.NoError(t, err)

	nodes, err := c.Parse(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"# Income\nNet income was $2.1B.", "# Notes"}, nodes)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestClientParseJobFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			w.Write([]byte(`{"id":"job-2"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/job/job-2":
			w.Write([]byte(`{"status":"ERROR"}`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	doc := filepath.Join(t.TempDir(), "filing.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("%PDF-1.4 stub"), 0o600))

	c, err := NewClient(Config{APIKey: "llx-test", BaseURL: srv.URL, PollInterval: time.Millisecond})
	require.NoError(t, err)

	_, err = c.Parse(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status ERROR")
}

func TestClientParseMissingDocument(t *testing.T) {
	c, err := NewClient(Config{APIKey: "llx-test", BaseURL: "http://127.0.0.1:0"})
	require.NoError(t, err)

	_, err = c.Parse(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
}

func TestClientParseAll(t *testing.T) {
	var jobs atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, header, err := r.FormFile("file")
			require.NoError(t, err)
			w.Write([]byte(`{"id":"` + header.Filename + `"}`))
			jobs.Add(1)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/result/markdown"):
			w.Write([]byte(`{"markdown":"page for ` + r.URL.Path + `"}`))
		case r.Method == http.MethodGet:
			w.Write([]byte(`{"status":"SUCCESS"}`))
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	docs := make([]string, 3)
	for i, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		docs[i] = filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(docs[i], []byte("%PDF stub"), 0o600))
	}

	c, err := NewClient(Config{APIKey: "llx-test", BaseURL: srv.URL, PollInterval: time.Millisecond, Workers: 2})
	require.NoError(t, err)

	got, err := c.ParseAll(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, doc := range docs {
		assert.NotEmpty(t, got[doc])
	}
	assert.Equal(t, int32(3), jobs.Load())
}
