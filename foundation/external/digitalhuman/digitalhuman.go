// Package digitalhuman asks the avatar render service to lip-sync a
// video against a synthesized voice clip and stores the artifact under
// the render directory.
package digitalhuman

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
	apiTimeout = 120
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

// Animate renders a lip-synced clip for the wav artifact and returns the
// path of the generated video. Best-effort: callers treat a failure as
// "turn keeps its text and audio, just no video".
func (c *Client) Animate(ctx context.Context, wavPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout*time.Second)
	defer cancel()

	payload, err := json.Marshal(struct {
		WavPath string `json:"wav_path"`
	}{WavPath: wavPath})
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

	videoPath := filepath.Join(c.outputDir, uuid.NewString()+".mp4")

	file, err := os.Create(videoPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(videoPath)
		return "", err
	}

	return videoPath, nil
}
