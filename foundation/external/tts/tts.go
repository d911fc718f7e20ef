// Package tts asks the speech synthesis service to voice an assistant
// reply and stores the wav artifact under the generation directory.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	apiTimeout = 60
)

type Client struct {
	apiEndpoint string
	outputDir   string
}

func NewClient(apiEndpoint string, outputDir string) *Client {
	return &Client{
		apiEndpoint: apiEndpoint,
		outputDir:   outputDir,
	}
}

// Synthesize voices text and returns the path of the generated wav file.
// Best-effort: callers treat a failure as "turn stays text-only".
func (c *Client) Synthesize(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout*time.Second)
	defer cancel()

	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	client := http.Client{}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bytes, _ := io.ReadAll(resp.Body)
		return "", errors.New(string(bytes))
	}

	if err := os.MkdirAll(c.outputDir, os.ModePerm); err != nil {
		return "", err
	}

	wavPath := filepath.Join(c.outputDir, uuid.NewString()+".wav")

	file, err := os.Create(wavPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(wavPath)
		return "", err
	}

	return wavPath, nil
}
