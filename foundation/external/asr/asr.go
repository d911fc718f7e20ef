// Package asr is a client for the speech recognition service. Recorded
// utterances are uploaded as wav files; no speech detected comes back as
// an empty transcript, not an error.
package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
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

func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout*time.Second)
	defer cancel()

	payload := bytes.Buffer{}
	writer := multipart.NewWriter(&payload)

	file, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	part, err := writer.CreateFormFile("audio", audioPath)
	if err != nil {
		return "", err
	}

	_, err = io.Copy(part, file)
	if err != nil {
		return "", err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiEndpoint, &payload)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	client := http.Client{}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	bytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.New(string(bytes))
	}

	var r struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(bytes, &r); err != nil {
		return "", err
	}

	return r.Text, nil
}
