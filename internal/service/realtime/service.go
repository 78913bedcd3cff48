package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vertextoedge/frame-viewer/internal/adapter/pocketbase"
	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/domain/event"
	"github.com/vertextoedge/frame-viewer/internal/metrics"
)

const (
	realtimePath = "/api/realtime"
	writeWait    = 10 * time.Second
)

// Config contains realtime sync configuration
type Config struct {
	BaseURL    string
	Collection string
	DeviceID   string

	// ReconnectDelay is the fixed wait between connection attempts
	ReconnectDelay time.Duration

	// HandshakeTimeout bounds dialing and waiting for the client id
	HandshakeTimeout time.Duration

	// IdleTimeout drops a silent connection; zero waits forever
	IdleTimeout time.Duration

	// EventBuffer is the capacity of the event channel
	EventBuffer int
}

// DefaultConfig returns default realtime configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "http://localhost:8090",
		Collection:       "media",
		ReconnectDelay:   5 * time.Second,
		HandshakeTimeout: 30 * time.Second,
		EventBuffer:      100,
	}
}

// TokenFunc returns the bearer token to present on the next connect
type TokenFunc func() string

// Service keeps a subscription to the media change feed open and translates
// its notifications into domain events
type Service struct {
	config *Config
	token  TokenFunc
	dialer *websocket.Dialer
	logger *zap.Logger

	events chan event.DomainEvent
	state  atomic.Int32

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new realtime Service. token may be nil.
func New(cfg *Config, token TokenFunc, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Collection == "" {
		cfg.Collection = "media"
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 30 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 100
	}
	if token == nil {
		token = func() string { return "" }
	}

	return &Service{
		config: cfg,
		token:  token,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
		events: make(chan event.DomainEvent, cfg.EventBuffer),
	}
}

// Events returns the bounded event channel. It is never closed.
func (s *Service) Events() <-chan event.DomainEvent {
	return s.events
}

// State returns the current connection state
func (s *Service) State() State {
	return State(s.state.Load())
}

func (s *Service) setState(st State) {
	old := State(s.state.Swap(int32(st)))
	if old != st {
		s.logger.Debug("realtime state changed",
			zap.String("from", old.String()),
			zap.String("to", st.String()))
	}
}

// Start runs the connect loop until ctx is cancelled or Stop is called.
// Connection failures never end the loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("realtime service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("realtime service started",
		zap.String("base_url", s.config.BaseURL),
		zap.String("topic", s.Topic()),
		zap.Duration("reconnect_delay", s.config.ReconnectDelay))

	s.wg.Add(1)
	go s.connectLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.setState(StateDisconnected)
	s.logger.Info("realtime service stopped")
	return nil
}

// Stop stops the realtime service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

// Topic returns the subscription sent after the handshake
func (s *Service) Topic() string {
	return pocketbase.SubscriptionTopic(s.config.Collection, s.config.DeviceID)
}

func (s *Service) connectLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		err := s.connectAndStream(ctx)
		if ctx.Err() != nil {
			return
		}

		reason := "connection closed"
		if err != nil {
			reason = err.Error()
			s.logger.Warn("realtime connection failed",
				zap.Duration("retry_in", s.config.ReconnectDelay),
				zap.Error(err))
		} else {
			s.logger.Warn("realtime connection closed",
				zap.Duration("retry_in", s.config.ReconnectDelay))
		}

		s.setState(StateDisconnected)
		if !s.emit(ctx, event.NewDisconnected(reason)) {
			return
		}

		timer := time.NewTimer(s.config.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// connectAndStream runs one connection through handshake and streaming.
// A clean close returns nil.
func (s *Service) connectAndStream(ctx context.Context) error {
	s.setState(StateConnecting)

	wsURL, err := WebSocketURL(s.config.BaseURL)
	if err != nil {
		return err
	}

	header := http.Header{}
	if token := s.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := s.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	// Unblock reads on shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetPingHandler(func(data string) error {
		s.extendDeadline(conn)
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	s.setState(StateAwaitingHandshake)
	clientID, err := s.awaitClientID(conn)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribeRequest{
		ClientID:      clientID,
		Subscriptions: []string{s.Topic()},
	}); err != nil {
		return fmt.Errorf("send subscription: %w", err)
	}

	s.setState(StateSubscribed)
	s.logger.Info("realtime subscribed", zap.String("client_id", clientID))

	if !s.emit(ctx, event.NewConnected(clientID)) {
		return nil
	}
	if !s.emit(ctx, event.NewRefreshNeeded()) {
		return nil
	}

	s.extendDeadline(conn)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("unexpected close: %w", err)
			}
			return fmt.Errorf("read: %w", err)
		}
		s.extendDeadline(conn)

		if msgType != websocket.TextMessage {
			continue
		}
		if ev := s.route(data); ev != nil {
			if !s.emit(ctx, ev) {
				return nil
			}
		}
	}
}

// awaitClientID reads until a message carries a client id, bounded by the
// handshake timeout
func (s *Service) awaitClientID(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(s.config.HandshakeTimeout))
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("await client id: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var hello handshakeMessage
		if err := json.Unmarshal(data, &hello); err != nil {
			s.logger.Debug("ignoring undecodable handshake message", zap.Error(err))
			continue
		}
		if hello.ClientID != "" {
			return hello.ClientID, nil
		}
	}
}

func (s *Service) extendDeadline(conn *websocket.Conn) {
	if s.config.IdleTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.config.IdleTimeout))
		return
	}
	conn.SetReadDeadline(time.Time{})
}

// route maps one inbound message to a domain event, or nil to drop it
func (s *Service) route(data []byte) event.DomainEvent {
	var msg recordMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("dropping undecodable message", zap.Error(err))
		return nil
	}

	switch msg.Action {
	case actionCreate, actionUpdate:
		var media domain.Media
		if len(msg.Record) == 0 || json.Unmarshal(msg.Record, &media) != nil || media.ID == "" {
			s.logger.Debug("dropping message with bad record", zap.String("action", msg.Action))
			return nil
		}
		matches := Matches(&media, s.config.DeviceID)
		switch {
		case msg.Action == actionCreate && matches:
			return event.NewMediaCreated(media)
		case msg.Action == actionCreate:
			s.logger.Debug("ignoring created media outside filter", zap.String("media_id", media.ID))
			return nil
		case matches:
			return event.NewMediaUpdated(media)
		default:
			return event.NewMediaDeleted(media.ID)
		}

	case actionDelete:
		var ref recordRef
		if len(msg.Record) == 0 || json.Unmarshal(msg.Record, &ref) != nil || ref.ID == "" {
			s.logger.Debug("dropping delete without id")
			return nil
		}
		return event.NewMediaDeleted(ref.ID)

	default:
		s.logger.Debug("dropping unrecognized message", zap.String("action", msg.Action))
		return nil
	}
}

// emit blocks while the channel is full; returns false on shutdown
func (s *Service) emit(ctx context.Context, ev event.DomainEvent) bool {
	select {
	case s.events <- ev:
		metrics.RealtimeEvents.WithLabelValues(ev.EventName()).Inc()
		return true
	case <-ctx.Done():
		return false
	}
}

// WebSocketURL maps an http(s) base URL to the realtime endpoint
func WebSocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", base, err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid base url %q: unsupported scheme %s", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: missing host", base)
	}
	u.Path = realtimePath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
