// Package feedback asks a chat-completion model to score and critique a transcript.
package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rbright/speechcraft/internal/apperr"
	"github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL = "https://api.siliconflow.cn/v1"
	DefaultModel   = "Qwen/Qwen2.5-7B-Instruct"

	schemaName = "speech_feedback"
)

// Result is the structured critique of one attempt.
type Result struct {
	Score           float64  `json:"score"`
	Clarity         string   `json:"clarity"`
	Logic           string   `json:"logic"`
	Suggestions     []string `json:"suggestions"`
	ImprovedVersion string   `json:"improvedVersion"`
}

// Config points the client at an OpenAI-compatible endpoint.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// TokenSource returns the credential for the next request; empty means missing.
type TokenSource func() string

// Client performs single-attempt feedback requests.
type Client struct {
	cfg        Config
	token      TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a client. httpClient and logger may be nil.
func NewClient(cfg Config, token TokenSource, httpClient *http.Client, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{cfg: cfg, token: token, httpClient: httpClient, logger: logger}
}

// BuildPrompt renders the instruction sent with every request.
func BuildPrompt(transcript, evaluationPrompt, scenarioTitle string) string {
	return fmt.Sprintf(
		"User just practiced their speaking skills for the scenario: \"%s\".\n"+
			"Transcription: \"%s\"\n"+
			"Evaluation criteria: %s\n"+
			"Analyze the transcription and provide constructive feedback in the requested JSON format.",
		scenarioTitle, transcript, evaluationPrompt,
	)
}

// Generate sends one completion request and returns the validated result.
func (c *Client) Generate(ctx context.Context, transcript, evaluationPrompt, scenarioTitle string) (Result, error) {
	token := strings.TrimSpace(c.token())
	if token == "" {
		return Result{}, apperr.ConfigurationMissing(apperr.MsgTokenMissing)
	}

	clientCfg := openai.DefaultConfig(token)
	clientCfg.BaseURL = strings.TrimRight(c.cfg.BaseURL, "/")
	clientCfg.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(clientCfg)

	req := openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(transcript, evaluationPrompt, scenarioTitle)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   schemaName,
				Schema: json.RawMessage(responseSchemaJSON),
				Strict: true,
			},
		},
	}

	started := time.Now()
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Result{}, classify(err)
	}
	c.logDebug("feedback response", "latency_ms", time.Since(started).Milliseconds(), "model", resp.Model)

	if len(resp.Choices) == 0 {
		c.logWarn("feedback response had no choices")
		return Result{}, apperr.Parse(apperr.MsgFeedback, errors.New("no choices in completion"))
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := decodeResult(raw)
	if err != nil {
		c.logWarn("feedback payload rejected", "error", err.Error(), "raw_payload", raw)
		return Result{}, apperr.Parse(apperr.MsgFeedback, err)
	}
	return result, nil
}

// classify maps client errors onto the failure taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apperr.Service(apiErr.Message, apperr.MsgFeedback, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return apperr.Service("", apperr.MsgFeedback, err)
	}
	return apperr.Network(apperr.MsgFeedback, err)
}

func (c *Client) logDebug(msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, attrs...)
}

func (c *Client) logWarn(msg string, attrs ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(msg, attrs...)
}
