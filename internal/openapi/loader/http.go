package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxDocumentBytes bounds remote documents.
const maxDocumentBytes = 16 << 20

func loadHTTP(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	if client == nil {
		return nil, errors.New("openapi loader: http client is nil")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("openapi loader: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openapi loader: fetch %s: %w", location, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openapi loader: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("openapi loader: read body: %w", err)
	}
	return data, nil
}
