package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/secutils/core/internal/domain"
)

// httpFetcher is a minimal default for the C6 Fetcher boundary (spec.md §6
// names it an out-of-scope external collaborator): it GETs the tracker's
// URL and records a content digest. The per-kind diffing/extraction logic
// (resource discovery, DOM selectors, page-structure JSON) spec.md
// explicitly leaves to that external fetcher is NOT reimplemented here —
// this exists so cmd/core has something concrete to run against, not as a
// claim that it satisfies kind-specific fetch semantics.
type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher() *httpFetcher {
	return &httpFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *httpFetcher) Fetch(ctx context.Context, t domain.Tracker) (domain.RevisionPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return domain.RevisionPayload{}, err
	}
	for k, v := range t.Settings.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.RevisionPayload{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.RevisionPayload{}, fmt.Errorf("fetch %s: status %d", t.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RevisionPayload{}, err
	}

	sum := sha256.Sum256(body)
	return domain.RevisionPayload{
		Kind:      domain.PayloadContentDigest,
		DigestHex: hex.EncodeToString(sum[:]),
	}, nil
}
