// Package agent is a client for the tool-use layer. When enabled, a user
// query may be routed through it so external lookups (delivery time,
// weather) can ground the final answer. The step is opaque: it either
// hands back a finished text or declines the query.
package agent

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
	apiTimeout = 30
)

type Client struct {
	apiEndpoint string
}

func NewClient(apiEndpoint string) *Client {
	return &Client{apiEndpoint: apiEndpoint}
}

// Query carries the user utterance plus the item fields the lookup tools
// need.
type Query struct {
	Text            string `json:"text"`
	DeparturePlace  string `json:"departure_place,omitempty"`
	DeliveryCompany string `json:"delivery_company_name,omitempty"`
}

// Answer routes the query through the agent. handled reports whether the
// agent produced a final answer; false means the caller should fall back
// to the plain generation path.
func (c *Client) Answer(ctx context.Context, q Query) (answer string, handled bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout*time.Second)
	defer cancel()

	payload, err := json.Marshal(q)
	if err != nil {
		return "", false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := http.Client{}

	resp, err := client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, err
	}

	if resp.StatusCode != http.StatusOK {
		return "", false, errors.New(string(bytes))
	}

	var r struct {
		Answer  string `json:"answer"`
		Handled bool   `json:"handled"`
	}
	if err := json.Unmarshal(bytes, &r); err != nil {
		return "", false, err
	}

	return r.Answer, r.Handled, nil
}
