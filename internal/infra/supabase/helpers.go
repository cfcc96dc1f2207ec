package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ============================================
// Write helpers
// ============================================
//
// Mutations are single-shot: they go through the circuit breaker at
// the store level but are never retried, since PostgREST inserts and
// RPCs are not idempotent from this side.

// doPost sends a POST with a JSON body and returns the representation.
func (c *Client) doPost(ctx context.Context, path string, payload any) ([]byte, error) {
	return c.doWrite(ctx, http.MethodPost, fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path), payload)
}

// doPatch sends a PATCH with a JSON body.
func (c *Client) doPatch(ctx context.Context, path string, payload any) error {
	_, err := c.doWrite(ctx, http.MethodPatch, fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path), payload)
	return err
}

// doDelete sends a DELETE and returns the deleted representation, so
// callers can tell a hit from a miss.
func (c *Client) doDelete(ctx context.Context, path string) ([]byte, error) {
	return c.doWrite(ctx, http.MethodDelete, fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path), nil)
}

// doRPC invokes a PostgREST stored procedure. The function runs as a
// single SQL transaction server-side, which is what gives baseline
// activation its atomicity.
func (c *Client) doRPC(ctx context.Context, fn string, payload any) ([]byte, error) {
	return c.doWrite(ctx, http.MethodPost, fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, fn), payload)
}

func (c *Client) doWrite(ctx context.Context, method, url string, payload any) ([]byte, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase returned status %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: write OK",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
	)

	return body, nil
}
