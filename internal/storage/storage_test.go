package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}
	return path
}

func TestClient_Upload(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "service-key", "contracts", zerolog.Nop())
	url := client.Upload(context.Background(), writeArtifact(t))

	assert.True(t, strings.HasPrefix(gotPath, "/storage/v1/object/contracts/contract_"))
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Contains(t, url, server.URL+"/storage/v1/object/public/contracts/contract_")
	assert.True(t, strings.HasSuffix(url, ".pdf"))
}

func TestClient_Upload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bucket not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "service-key", "contracts", zerolog.Nop())
	url := client.Upload(context.Background(), writeArtifact(t))

	// Failed uploads degrade to the placeholder, never an error
	assert.True(t, strings.HasPrefix(url, "https://placeholder.com/contract_"))
	assert.True(t, strings.HasSuffix(url, ".pdf"))
}

func TestClient_Upload_NotConfigured(t *testing.T) {
	client := NewClient("", "", "contracts", zerolog.Nop())
	url := client.Upload(context.Background(), writeArtifact(t))
	assert.True(t, strings.HasPrefix(url, "https://placeholder.com/contract_"))
}

func TestClient_Upload_MissingFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "service-key", "contracts", zerolog.Nop())
	url := client.Upload(context.Background(), "/nonexistent/contract.pdf")
	assert.True(t, strings.HasPrefix(url, "https://placeholder.com/contract_"))
}
