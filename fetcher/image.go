package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"offerbot/models"
)

// FetchImage downloads url and returns its bytes. The response must declare an
// image/* content type; anything else yields *models.NotAnImageError.
func FetchImage(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &models.NetworkError{URL: url, Err: err}
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &models.NetworkError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &models.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return nil, &models.NotAnImageError{URL: url, ContentType: contentType}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &models.NetworkError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, &models.NetworkError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	return buf.Bytes(), nil
}

// ImageFetcher downloads product images with a fixed user agent
type ImageFetcher struct {
	client    *http.Client
	userAgent string
}

// NewImageFetcher creates an ImageFetcher. A zero timeout leaves downloads unbounded.
func NewImageFetcher(userAgent string, timeout time.Duration) *ImageFetcher {
	return &ImageFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// NewImageFetcherWithClient creates an ImageFetcher on an existing client
func NewImageFetcherWithClient(client *http.Client, userAgent string) *ImageFetcher {
	return &ImageFetcher{
		client:    client,
		userAgent: userAgent,
	}
}

// Fetch downloads one image
func (f *ImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return FetchImage(ctx, f.client, url, f.userAgent)
}
