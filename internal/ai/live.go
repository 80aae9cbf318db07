package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// DefaultLiveEndpoint is the websocket host of the live API.
	DefaultLiveEndpoint = "wss://generativelanguage.googleapis.com"
	// DefaultLiveModel answers calls with native audio.
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"

	livePath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// Blob is one realtime media chunk.
type Blob struct {
	MimeType string
	Data     []byte
}

// LiveMessage is one inbound server message of a live session.
type LiveMessage struct {
	// Audio holds decoded PCM payloads in arrival order.
	Audio        [][]byte
	TurnComplete bool
	Interrupted  bool
}

// LiveConfig configures a live session.
type LiveConfig struct {
	Model             string
	SystemInstruction string
}

// LiveConn is an open bidirectional live session.
type LiveConn interface {
	Send(ctx context.Context, b Blob) error
	Recv(ctx context.Context) (LiveMessage, error)
	Close() error
}

// LiveDialer opens live sessions.
type LiveDialer interface {
	Dial(ctx context.Context, cfg LiveConfig) (LiveConn, error)
}

// ErrLiveClosed is returned by Recv once the server has closed the session.
var ErrLiveClosed = errors.New("live session closed")

// WSDialer dials the live API over a websocket.
type WSDialer struct {
	Endpoint string
	APIKey   string
	Dialer   *websocket.Dialer
	Logger   *zap.Logger
}

// NewWSDialer creates a dialer. Empty endpoint selects the public API.
func NewWSDialer(endpoint, apiKey string, logger *zap.Logger) *WSDialer {
	if endpoint == "" {
		endpoint = DefaultLiveEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSDialer{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Dialer:   &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		Logger:   logger.Named("live"),
	}
}

type liveSetup struct {
	Setup struct {
		Model             string            `json:"model"`
		GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
		SystemInstruction *content          `json:"systemInstruction,omitempty"`
	} `json:"setup"`
}

type liveRealtimeInput struct {
	RealtimeInput struct {
		MediaChunks []inlineData `json:"mediaChunks"`
	} `json:"realtimeInput"`
}

type liveServerMessage struct {
	SetupComplete *struct{} `json:"setupComplete,omitempty"`
	ServerContent *struct {
		ModelTurn    *content `json:"modelTurn,omitempty"`
		TurnComplete bool     `json:"turnComplete,omitempty"`
		Interrupted  bool     `json:"interrupted,omitempty"`
	} `json:"serverContent,omitempty"`
}

// Dial connects, sends the session setup and waits for the server to
// acknowledge it.
func (d *WSDialer) Dial(ctx context.Context, cfg LiveConfig) (LiveConn, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultLiveModel
	}
	u, err := url.Parse(strings.TrimRight(d.Endpoint, "/") + livePath)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("live endpoint: %w", err))
	}
	header := http.Header{}
	if d.APIKey != "" {
		header.Set("x-goog-api-key", d.APIKey)
	}

	ws, resp, err := d.Dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, classifyHTTPError(resp.StatusCode, nil)
		}
		return nil, NewTransientError(fmt.Errorf("dial live session: %w", err))
	}

	var setup liveSetup
	model := cfg.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	setup.Setup.Model = model
	setup.Setup.GenerationConfig = &generationConfig{ResponseModalities: []string{"AUDIO"}}
	if cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = instruction(cfg.SystemInstruction)
	}
	if err := ws.WriteJSON(setup); err != nil {
		_ = ws.Close()
		return nil, NewTransientError(fmt.Errorf("send setup: %w", err))
	}

	conn := &wsConn{ws: ws, logger: d.Logger}
	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	}
	// Cancellation unblocks the read below.
	stop := context.AfterFunc(ctx, func() { _ = ws.SetReadDeadline(time.Now()) })
	for {
		msg, err := conn.read()
		if err != nil {
			stop()
			_ = ws.Close()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("await setup: %w", err)
		}
		if msg.SetupComplete != nil {
			break
		}
	}
	if !stop() {
		_ = ws.Close()
		return nil, ctx.Err()
	}
	_ = ws.SetReadDeadline(time.Time{})
	d.Logger.Info("live session open", zap.String("model", model))
	return conn, nil
}

type wsConn struct {
	ws     *websocket.Conn
	logger *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Send writes one realtime chunk. Safe for concurrent use.
func (c *wsConn) Send(ctx context.Context, b Blob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var msg liveRealtimeInput
	msg.RealtimeInput.MediaChunks = []inlineData{{
		MimeType: b.MimeType,
		Data:     base64.StdEncoding.EncodeToString(b.Data),
	}}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
	} else {
		_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	return c.ws.WriteJSON(msg)
}

// Recv blocks for the next server message that carries audio or a turn
// signal. Control-only messages are skipped.
func (c *wsConn) Recv(ctx context.Context) (LiveMessage, error) {
	stop := context.AfterFunc(ctx, func() { _ = c.ws.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		raw, err := c.read()
		if err != nil {
			if ctx.Err() != nil {
				return LiveMessage{}, ctx.Err()
			}
			return LiveMessage{}, err
		}
		if raw.ServerContent == nil {
			continue
		}
		msg := LiveMessage{
			TurnComplete: raw.ServerContent.TurnComplete,
			Interrupted:  raw.ServerContent.Interrupted,
		}
		if turn := raw.ServerContent.ModelTurn; turn != nil {
			for _, p := range turn.Parts {
				if p.InlineData == nil || !strings.HasPrefix(p.InlineData.MimeType, "audio/") {
					continue
				}
				pcm, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					c.logger.Warn("dropping undecodable audio chunk", zap.Error(err))
					continue
				}
				msg.Audio = append(msg.Audio, pcm)
			}
		}
		return msg, nil
	}
}

func (c *wsConn) read() (liveServerMessage, error) {
	var msg liveServerMessage
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return msg, ErrLiveClosed
		}
		return msg, err
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("decode live message: %w", err)
	}
	return msg, nil
}

// Close sends a close frame and closes the socket. Safe to call twice.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
