package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// FallbackReply is the single fragment emitted when a streamed reply fails.
const FallbackReply = "Boss, it seems like there is a network glitch. Let me check and get back to you! 🤝"

const (
	emptyMessageStandIn = "Hello Boss!"
	replyTemperature    = 0.7
)

// Persona returns the system instruction that makes the model speak as
// contactName.
func Persona(contactName string) string {
	return fmt.Sprintf("You are simulating a WhatsApp contact named %s in an app called Boss Massager. "+
		"Respond professionally but warmly like a loyal business associate or friend. "+
		"Use Bengali or English as per user input. Concise responses. Use emojis like 🤝, 🚀, 👑.", contactName)
}

// StreamReply streams the reply of contactName to message. Fragments are
// delivered in arrival order on the returned channel, which is closed when
// the reply completes. On any request or stream failure exactly one
// FallbackReply fragment is delivered before the channel closes. Cancelling
// ctx stops the stream without a fallback. The channel is single-use.
func (c *Client) StreamReply(ctx context.Context, message, contactName string) <-chan string {
	out := make(chan string)
	if message == "" {
		message = emptyMessageStandIn
	}
	req := generateRequest{
		Contents:          userText(message),
		SystemInstruction: instruction(Persona(contactName)),
		GenerationConfig:  temperature(replyTemperature),
	}

	go func() {
		defer close(out)
		err := c.stream(ctx, req, func(fragment string) bool {
			select {
			case out <- fragment:
				return true
			case <-ctx.Done():
				return false
			}
		})
		switch {
		case err == nil:
			c.observer.ObserveRequest("reply", "ok")
		case ctx.Err() != nil:
			c.observer.ObserveRequest("reply", "cancelled")
		default:
			c.observer.ObserveRequest("reply", "failed")
			c.observer.ObserveFallback()
			c.logger.Warn("reply stream failed", zap.String("contact", contactName), zap.Error(err))
			select {
			case out <- FallbackReply:
			case <-ctx.Done():
			}
		}
	}()
	return out
}

// stream performs a server-sent-events streamGenerateContent call and hands
// every non-empty text fragment to emit until emit returns false.
func (c *Client) stream(ctx context.Context, req generateRequest, emit func(string) bool) error {
	resp, err := c.post(ctx, "streamGenerateContent", url.Values{"alt": {"sse"}}, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxResponseSize)
	var data bytes.Buffer
	dispatch := func() (bool, error) {
		if data.Len() == 0 {
			return true, nil
		}
		defer data.Reset()
		var chunk generateResponse
		if err := json.Unmarshal(data.Bytes(), &chunk); err != nil {
			return false, NewFatalError(fmt.Errorf("decode stream chunk: %w", err))
		}
		if chunk.Error != nil {
			return false, classifyHTTPError(chunk.Error.Code, []byte(chunk.Error.Message))
		}
		if t := chunk.text(); t != "" {
			return emit(t), nil
		}
		return true, nil
	}

	for sc.Scan() {
		line := sc.Bytes()
		switch {
		case len(line) == 0:
			// Blank line terminates an event.
			cont, err := dispatch()
			if err != nil {
				return err
			}
			if !cont {
				return ctx.Err()
			}
		case bytes.HasPrefix(line, []byte("data:")):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.Write(bytes.TrimSpace(line[len("data:"):]))
		}
	}
	if err := sc.Err(); err != nil {
		return NewTransientError(fmt.Errorf("read stream: %w", err))
	}
	cont, err := dispatch()
	if err != nil {
		return err
	}
	if !cont {
		return ctx.Err()
	}
	return nil
}
