package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/neuroplatform/simforms/pkg/schema"
)

// FetchSpec retrieves {base}/openapi.json. Concurrent callers share a single
// in-flight request; the result is recorded in the spec cache unless a newer
// fetch already completed. The shared request outlives the caller that
// started it, and each caller stops waiting when its own ctx is done.
func (c *Client) FetchSpec(ctx context.Context) (schema.Document, error) {
	seq := c.cache.Begin()
	ch := c.group.DoChan(specPath, func() (any, error) {
		return c.fetchSpec(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return schema.Document{}, connectError(c.base, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return schema.Document{}, res.Err
		}
		current, _ := c.cache.Store(seq, res.Val.(schema.Document))
		return current, nil
	}
}

func (c *Client) fetchSpec(ctx context.Context) (schema.Document, error) {
	target, err := c.endpoint(specPath)
	if err != nil {
		return schema.Document{}, err
	}

	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return schema.Document{}, connectError(c.base, err)
	}

	switch {
	case resp.status == http.StatusNotFound:
		return schema.Document{}, &FetchError{
			Kind:    KindProtocol,
			URL:     target,
			Status:  resp.status,
			Message: fmt.Sprintf("OpenAPI specification not found at %s", target),
		}
	case resp.status < 200 || resp.status >= 300:
		return schema.Document{}, &FetchError{
			Kind:    KindProtocol,
			URL:     target,
			Status:  resp.status,
			Message: fmt.Sprintf("Failed to fetch OpenAPI specification: %d %s", resp.status, http.StatusText(resp.status)),
		}
	}

	src, err := schema.SourceFromURL(target)
	if err != nil {
		return schema.Document{}, invalidURLError(c.base, err)
	}
	doc, err := schema.NewDocument(src, resp.body)
	if err != nil {
		return schema.Document{}, &FetchError{
			Kind:    KindFormat,
			URL:     target,
			Status:  resp.status,
			Message: "Invalid OpenAPI specification format",
			Err:     err,
		}
	}
	return doc, nil
}

// Forms lists the generation endpoints advertised by GET {base}/forms. Each
// entry is returned as an absolute path.
func (c *Client) Forms(ctx context.Context) ([]string, error) {
	target, err := c.endpoint(formsPath)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, connectError(c.base, err)
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, &FetchError{
			Kind:    KindProtocol,
			URL:     target,
			Status:  resp.status,
			Message: fmt.Sprintf("Failed to fetch forms: %d %s", resp.status, http.StatusText(resp.status)),
		}
	}

	var payload struct {
		Forms []string `json:"forms"`
	}
	if err := json.Unmarshal(resp.body, &payload); err != nil {
		return nil, &FetchError{
			Kind:    KindFormat,
			URL:     target,
			Status:  resp.status,
			Message: "Invalid forms listing format",
			Err:     err,
		}
	}
	out := make([]string, 0, len(payload.Forms))
	for _, name := range payload.Forms {
		out = append(out, "/"+name)
	}
	return out, nil
}

// SpecCache holds the most recent spec document. Fetches take a sequence
// number when they start; a completed fetch only replaces the cached document
// when no later-started fetch has already been stored.
type SpecCache struct {
	mu     sync.Mutex
	next   uint64
	stored uint64
	doc    schema.Document
}

// NewSpecCache returns an empty cache.
func NewSpecCache() *SpecCache {
	return &SpecCache{}
}

// Begin reserves the sequence number of a new fetch.
func (s *SpecCache) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

// Store records doc for fetch seq. It returns the document now current and
// false when seq was stale and doc was discarded.
func (s *SpecCache) Store(seq uint64, doc schema.Document) (schema.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.stored {
		return s.doc, false
	}
	s.stored = seq
	s.doc = doc
	return doc, true
}

// Current returns the cached document, if any.
func (s *SpecCache) Current() (schema.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc, !s.doc.IsZero()
}
