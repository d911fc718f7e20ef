// Package retriever talks to the vector retrieval service augmenting
// prompts with passages from the item instruction documents.
package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

const (
	apiTimeout = 10
)

// Handle is one registered retrieval store.
type Handle struct {
	apiEndpoint string
	configPath  string
	indexDir    string
}

// Retrieve returns the top-k passages relevant to query, most relevant
// first.
func (h *Handle) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout*time.Second)
	defer cancel()

	payload, err := json.Marshal(struct {
		Query    string `json:"query"`
		TopK     int    `json:"top_k"`
		IndexDir string `json:"index_dir"`
	}{Query: query, TopK: k, IndexDir: h.indexDir})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.apiEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := http.Client{}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(string(bytes))
	}

	var r struct {
		Passages []string `json:"passages"`
	}
	if err := json.Unmarshal(bytes, &r); err != nil {
		return nil, err
	}

	return r.Passages, nil
}
