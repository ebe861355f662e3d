package geminilive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"linguistlm/internal/domain"
	"linguistlm/internal/ports"
)

const (
	DefaultURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	outboundBuffer = 64
	eventBuffer    = 64
	closeGrace     = time.Second
)

var (
	errConnectionClosed = errors.New("live connection closed")
	errOutboundFull     = errors.New("live outbound queue full")
)

// Config controls the Gemini Live websocket endpoint.
type Config struct {
	APIKey string
	URL    string
}

// Provider implements ports.LiveProvider for the Gemini Live API.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
}

func NewProvider(cfg Config) *Provider {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Connect dials the endpoint and sends the setup frame. The returned
// connection reports open once the server acknowledges the setup.
func (p *Provider) Connect(ctx context.Context, cfg ports.LiveConfig) (ports.LiveConnection, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is not configured", domain.ErrConnectionFailure)
	}

	wsURL, err := buildURL(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnectionFailure, err)
	}

	conn, resp, err := p.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: failed to connect to Gemini Live (%s): %v", domain.ErrConnectionFailure, resp.Status, err)
		}
		return nil, fmt.Errorf("%w: failed to connect to Gemini Live: %v", domain.ErrConnectionFailure, err)
	}

	if err := conn.WriteJSON(buildSetup(cfg)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to send setup: %v", domain.ErrConnectionFailure, err)
	}

	c := &connection{
		conn:   conn,
		events: make(chan ports.LiveEvent, eventBuffer),
		out:    make(chan []byte, outboundBuffer),
		done:   make(chan struct{}),
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()
	go func() {
		c.wg.Wait()
		close(c.events)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()

	log.Info().Str("model", cfg.Model).Str("voice", cfg.Voice).Msg("live connection dialed")
	return c, nil
}

type connection struct {
	conn *websocket.Conn

	events chan ports.LiveEvent
	out    chan []byte
	done   chan struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// SendRealtimeInput queues a media frame. Frames are dropped when the queue
// is full or the connection is closing.
func (c *connection) SendRealtimeInput(chunk domain.MediaChunk) error {
	select {
	case <-c.done:
		return errConnectionClosed
	default:
	}

	frame, err := json.Marshal(realtimeInputFrame{
		RealtimeInput: realtimeInput{MediaChunks: []domain.MediaChunk{chunk}},
	})
	if err != nil {
		return fmt.Errorf("failed to encode realtime input: %w", err)
	}

	select {
	case c.out <- frame:
		return nil
	case <-c.done:
		return errConnectionClosed
	default:
		return errOutboundFull
	}
}

func (c *connection) Events() <-chan ports.LiveEvent {
	return c.events
}

// Close starts shutdown without waiting for the read loop, so it is safe to
// call from the goroutine consuming Events.
func (c *connection) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.SetReadDeadline(time.Now().Add(closeGrace))
	})
	return nil
}

func (c *connection) closing() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *connection) writeLoop() {
	defer c.wg.Done()

	for {
		select {
		case frame := <-c.out:
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Msg("live write failed")
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace)); err != nil {
				log.Debug().Err(err).Msg("live close frame not sent")
			}
			return
		}
	}
}

func (c *connection) readLoop() {
	defer c.wg.Done()
	defer c.Close()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.readFailed(err)
			return
		}

		frame, err := decodeServerFrame(payload)
		if err != nil {
			log.Debug().Err(err).Int("bytes", len(payload)).Msg("ignoring undecodable live frame")
			continue
		}
		if frame.GoAway != nil {
			log.Warn().Str("time_left", frame.GoAway.TimeLeft).Msg("live endpoint going away")
		}
		if frame.SetupComplete != nil {
			c.emit(ports.LiveEvent{Type: ports.LiveEventOpen})
		}
		if msg := frame.message(); msg != nil {
			c.emit(ports.LiveEvent{Type: ports.LiveEventMessage, Message: msg})
		}
	}
}

func (c *connection) readFailed(err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		c.emit(ports.LiveEvent{Type: ports.LiveEventClose, CloseCode: closeErr.Code, CloseReason: closeErr.Text})
		return
	}
	if c.closing() {
		return
	}
	c.emit(ports.LiveEvent{Type: ports.LiveEventError, Err: fmt.Errorf("failed to read live event: %w", err)})
}

// emit delivers in order. Once Close is called, events nobody will read are
// discarded.
func (c *connection) emit(event ports.LiveEvent) {
	if c.closing() {
		return
	}
	select {
	case c.events <- event:
	case <-c.done:
	}
}

func buildURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.URL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	liveURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid Gemini Live URL: %w", err)
	}
	query := liveURL.Query()
	query.Set("key", cfg.APIKey)
	liveURL.RawQuery = query.Encode()
	return liveURL.String(), nil
}
