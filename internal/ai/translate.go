package ai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Sentinel results of Translate. They are returned in place of the
// translation; Translate never fails with an error.
const (
	TranslationEmpty = "Translation failed."
	TranslationError = "Translation Error."
)

const translateTemperature = 0.1

// Translate returns text translated into targetLanguage. Rate limits and
// server errors are retried with exponential backoff; on exhaustion or a
// permanent error the TranslationError sentinel is returned.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) string {
	req := generateRequest{
		Contents:         userText(fmt.Sprintf("Translate to %s. ONLY text: \"%s\"", targetLanguage, text)),
		GenerationConfig: temperature(translateTemperature),
	}

	out, err := c.withRetry(ctx, "translate", func() (string, error) {
		return c.generate(ctx, req)
	})
	if err != nil {
		c.logger.Warn("translate failed", zap.String("lang", targetLanguage), zap.Error(err))
		return TranslationError
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return TranslationEmpty
	}
	return out
}

// withRetry runs fn up to MaxAttempts times, waiting Backoff(i) after the
// i-th transient failure. No wait follows the final attempt.
func (c *Client) withRetry(ctx context.Context, op string, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		out, err := fn()
		if err == nil {
			c.observer.ObserveRequest(op, "ok")
			return out, nil
		}
		lastErr = err

		if !IsTransient(err) {
			c.observer.ObserveRequest(op, "fatal")
			return "", err
		}
		if attempt == c.retry.MaxAttempts-1 {
			break
		}

		wait := c.retry.Backoff(attempt, c.jitter)
		c.observer.ObserveRetry(op)
		c.logger.Debug("request failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.retry.MaxAttempts),
			zap.Duration("backoff", wait),
			zap.Error(err))
		if err := c.sleep(ctx, wait); err != nil {
			c.observer.ObserveRequest(op, "cancelled")
			return "", err
		}
	}
	c.observer.ObserveRequest(op, "exhausted")
	return "", lastErr
}
