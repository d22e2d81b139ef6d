package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/javanhut/helio-vcs/internal/pack"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// HTTPTransport talks to a Server.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a client for the server at baseURL. A nil client
// uses one with a 30 second timeout.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (t *HTTPTransport) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return t.baseURL + "/api/v1/" + strings.Join(escaped, "/")
}

func (t *HTTPTransport) do(req *http.Request) ([]byte, http.Header, error) {
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, nil, statusError(resp, body)
	}
	return body, resp.Header, nil
}

func statusError(resp *http.Response, body []byte) error {
	msg := strings.TrimSpace(string(body))
	switch resp.Header.Get(HeaderError) {
	case codeNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case codeHashMismatch:
		return fmt.Errorf("%w: %s", ErrHashMismatch, msg)
	case codeUnknownParent:
		return fmt.Errorf("%w: %s", ErrUnknownParent, msg)
	case codeConflict:
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	}
	return fmt.Errorf("remote: unexpected status %d: %s", resp.StatusCode, msg)
}

func (t *HTTPTransport) List(ctx context.Context) ([]RemoteRevision, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url("revisions"), nil)
	if err != nil {
		return nil, err
	}
	body, _, err := t.do(req)
	if err != nil {
		return nil, err
	}
	n, err := pack.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return decodeListing(n)
}

func (t *HTTPTransport) Fetch(ctx context.Context, id string) (*serial.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url("revisions", id), nil)
	if err != nil {
		return nil, err
	}
	body, _, err := t.do(req)
	if err != nil {
		return nil, err
	}
	return pack.Decode(body)
}

func (t *HTTPTransport) Push(ctx context.Context, meta RemoteRevision, payload *serial.Node) error {
	if meta.Hash.IsZero() {
		meta.Hash = PayloadHash(payload)
	}
	data, err := pack.Encode(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.url("revisions", meta.ID), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	setMetaHeaders(req.Header, meta)
	_, _, err = t.do(req)
	return err
}

// FetchAll downloads every payload in a single bundle.
func (t *HTTPTransport) FetchAll(ctx context.Context) (map[string]*serial.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url("bundle"), nil)
	if err != nil {
		return nil, err
	}
	body, _, err := t.do(req)
	if err != nil {
		return nil, err
	}
	_, payloads, err := readExport(body)
	return payloads, err
}

var (
	_ Transport   = (*HTTPTransport)(nil)
	_ BulkFetcher = (*HTTPTransport)(nil)
)
