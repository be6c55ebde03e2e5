// Package webhook implements the send_webhook action: an HTTP call to an
// external endpoint. Transport failures and 5xx responses surface as
// retryable errors; 4xx responses are permanent.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vyomtech/automation/pkg/models"
	"github.com/vyomtech/automation/pkg/protocol"
)

const defaultTimeoutSeconds = 30

var (
	ErrURLRequired    = errors.New("missing or invalid 'url' in configuration")
	ErrClientRejected = errors.New("webhook endpoint rejected the request")
	ErrServerError    = errors.New("webhook endpoint returned a server error")
)

type Action struct {
	URL     string
	Method  string
	Headers map[string]string
	Payload map[string]any
	Timeout time.Duration

	client *http.Client
}

func NewAction(config map[string]any) (*Action, error) {
	url, _ := config["url"].(string)
	if url == "" {
		return nil, ErrURLRequired
	}

	method, _ := config["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	headers := make(map[string]string)

	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for k, v := range headersConfig {
			if value, ok := v.(string); ok {
				headers[k] = value
			}
		}
	}

	payload, _ := config["payload"].(map[string]any)

	timeout := defaultTimeoutSeconds * time.Second
	if v, ok := config["timeout_seconds"].(float64); ok && v > 0 {
		timeout = time.Duration(v) * time.Second
	}

	return &Action{
		URL:     url,
		Method:  strings.ToUpper(method),
		Headers: headers,
		Payload: payload,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (a *Action) Execute(ctx context.Context, executionCtx models.ExecutionContext, logger *slog.Logger) (map[string]any, error) {
	logger = logger.With("action_type", "send_webhook", "url", a.URL)

	req, err := a.buildRequest(ctx, executionCtx)
	if err != nil {
		return nil, protocol.NewNonRetryableError(err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, protocol.NewNonRetryableError(fmt.Errorf("%w: status %d", ErrClientRejected, resp.StatusCode))
	}

	var body any

	err = json.Unmarshal(bodyBytes, &body)
	if err != nil {
		body = string(bodyBytes)
	}

	logger.InfoContext(ctx, "Webhook delivered", "status_code", resp.StatusCode, "body_length", len(bodyBytes))

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        body,
	}, nil
}

func (a *Action) buildRequest(ctx context.Context, executionCtx models.ExecutionContext) (*http.Request, error) {
	// The configured payload is wrapped in an envelope identifying the
	// instance, so receivers can correlate deliveries.
	envelope := map[string]any{
		"instance_id":   executionCtx.InstanceID,
		"definition_id": executionCtx.DefinitionID,
		"trigger_type":  executionCtx.TriggerType,
		"trigger_data":  executionCtx.TriggerData,
		"payload":       a.Payload,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, a.Method, a.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range a.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}
