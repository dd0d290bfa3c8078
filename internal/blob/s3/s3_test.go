package s3blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestNormaliseEndpoint(t *testing.T) {
	cases := []struct {
		in     string
		ssl    bool
		expect string
	}{
		{"localhost:9000", false, "http://localhost:9000"},
		{"minio.local", true, "https://minio.local"},
		{"https://s3.example.com", false, "https://s3.example.com"},
	}
	for _, tc := range cases {
		if got := normaliseEndpoint(tc.in, tc.ssl); got != tc.expect {
			t.Fatalf("normaliseEndpoint(%q): expected %s got %s", tc.in, tc.expect, got)
		}
	}
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	if _, err := New(context.Background(), ClientConfig{Region: "us-east-1"}); err == nil {
		t.Fatalf("expected bucket error")
	}
	if _, err := New(context.Background(), ClientConfig{Bucket: "b"}); err == nil {
		t.Fatalf("expected region error")
	}
}

func TestUploadFilesToPathStyleEndpoint(t *testing.T) {
	var mu sync.Mutex
	got := map[string]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got[r.Method+" "+r.URL.Path] = r.Header.Get("Content-Type") + "|" + string(body)
		mu.Unlock()
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx := context.Background()
	client, err := New(ctx, ClientConfig{
		Endpoint:       server.URL,
		Region:         "us-east-1",
		Bucket:         "runs",
		AccessKey:      "test",
		SecretKey:      "test",
		ForcePathStyle: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := t.TempDir()
	local := filepath.Join(dir, "equity.csv")
	if err := os.WriteFile(local, []byte("time,equity\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	up := NewRunUploader(client, "/backtests/")
	id := uuid.MustParse("6f1c1f7e-3c53-4a4e-9d55-0d6c1c9c2a10")
	keys, err := up.UploadFiles(ctx, id, []string{local})
	if err != nil {
		t.Fatalf("UploadFiles: %v", err)
	}
	wantKey := "backtests/6f1c1f7e-3c53-4a4e-9d55-0d6c1c9c2a10/equity.csv"
	if len(keys) != 1 || keys[0] != wantKey {
		t.Fatalf("unexpected keys %v", keys)
	}

	mu.Lock()
	defer mu.Unlock()
	entry, ok := got["PUT /runs/"+wantKey]
	if !ok {
		t.Fatalf("expected PUT to path-style key, got %v", got)
	}
	if !strings.HasPrefix(entry, "text/csv|") {
		t.Fatalf("unexpected content type in %q", entry)
	}
}

func TestUploadFilesMissingLocal(t *testing.T) {
	client, err := New(context.Background(), ClientConfig{Region: "us-east-1", Bucket: "b", AccessKey: "k", SecretKey: "s"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	up := NewRunUploader(client, "")
	if _, err := up.UploadFiles(context.Background(), uuid.New(), []string{filepath.Join(t.TempDir(), "nope.csv")}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestContentType(t *testing.T) {
	if contentType("a.JSONL") != "application/x-ndjson" || contentType("a.bin") != "application/octet-stream" {
		t.Fatalf("unexpected content types")
	}
}
