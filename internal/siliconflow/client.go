// Package siliconflow calls the SiliconFlow speech-to-text endpoint.
package siliconflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rbright/speechcraft/internal/apperr"
	"github.com/rbright/speechcraft/internal/recording"
	"github.com/rbright/speechcraft/internal/version"
)

const (
	DefaultEndpoint = "https://api.siliconflow.cn/v1/audio/transcriptions"
	DefaultModel    = "TeleAI/TeleSpeechASR"

	uploadFilename = "recording.wav"
	maxBodyBytes   = 1 << 20
)

// Config points the client at an endpoint and model.
type Config struct {
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// Client performs single-attempt transcription requests.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Transcribe uploads artifact and returns the recognized text verbatim.
//
// An empty token fails with a ConfigurationMissing error before any request is made.
func (c *Client) Transcribe(ctx context.Context, artifact recording.Artifact, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperr.ConfigurationMissing(apperr.MsgTokenMissing)
	}

	body, contentType, err := c.encodeForm(artifact)
	if err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", version.UserAgent())

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperr.Network("transcription failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", apperr.Network("transcription failed", err)
	}

	if c.logger != nil {
		c.logger.Debug("transcription response",
			"status", resp.StatusCode,
			"latency_ms", time.Since(started).Milliseconds(),
			"bytes", len(payload),
		)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure errorResponse
		_ = json.Unmarshal(payload, &failure)
		return "", apperr.Service(failure.Message, apperr.MsgTranscription, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var out transcriptionResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return "", apperr.Parse(apperr.MsgTranscription, err)
	}
	return out.Text, nil
}

func (c *Client) encodeForm(artifact recording.Artifact) (io.Reader, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("model", c.cfg.Model); err != nil {
		return nil, "", err
	}

	mediaType := artifact.MediaType
	if mediaType == "" {
		mediaType = recording.MediaTypeWAV
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, uploadFilename))
	header.Set("Content-Type", mediaType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(artifact.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}
