// Package livesync maintains the websocket connection that streams
// escalation lifecycle events into the local stats aggregate, with fixed
// interval reconnection and a hard attempt ceiling.
package livesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uniboxhq/unibox/internal/events"
	"github.com/uniboxhq/unibox/internal/logging"
	"github.com/uniboxhq/unibox/internal/models"
)

// Connection defaults.
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultRetryInterval     = 3 * time.Second
	DefaultMaxAttempts       = 5
)

// ErrRetriesExhausted is surfaced once the reconnect attempt ceiling is
// reached. The client stays down until Connect is called again.
var ErrRetriesExhausted = errors.New("reconnect attempts exhausted")

// State is the connection lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	// StateTerminal is a disconnected state the client will not retry
	// out of on its own; only an explicit Connect leaves it.
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Conn is one live socket. Read blocks until a full event arrives; Write
// sends one JSON object. Close is safe to call more than once.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a socket to the given URI. The URI already carries the
// bearer credential; implementations must not log it unredacted.
type Dialer func(ctx context.Context, uri string) (Conn, error)

// CredentialProvider returns the current bearer credential, or empty when
// none is available yet. An empty credential makes Connect a silent no-op
// rather than an error.
type CredentialProvider func(ctx context.Context) (string, error)

// EventLog is the durable sink for escalation events; satisfied by
// db.EscalationRepository.
type EventLog interface {
	Append(ctx context.Context, event *models.EscalationEvent) error
}

// Client owns at most one escalation socket at a time. On a
// non-intentional close it redials on a fixed interval up to the attempt
// ceiling, then parks in StateTerminal with a persistent error. An
// explicit Disconnect never retries.
type Client struct {
	uri       string
	dialer    Dialer
	creds     CredentialProvider
	publisher events.Publisher
	log       EventLog
	logger    zerolog.Logger

	heartbeatInterval time.Duration
	retryInterval     time.Duration
	maxAttempts       int
	now               func() time.Time
	newID             func() string

	mu        sync.Mutex
	state     State
	stats     models.EscalationStats
	lastEvent *ServerEvent
	lastErr   error
	conn      Conn
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	subs      map[string]struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPublisher wires an event publisher for connection and escalation
// lifecycle events.
func WithPublisher(publisher events.Publisher) ClientOption {
	return func(c *Client) {
		c.publisher = publisher
	}
}

// WithEventLog wires a durable escalation event log.
func WithEventLog(log EventLog) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// WithHeartbeatInterval overrides the keep-alive cadence.
func WithHeartbeatInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.heartbeatInterval = d
		}
	}
}

// WithRetryInterval overrides the fixed reconnect delay.
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.retryInterval = d
		}
	}
}

// WithMaxAttempts overrides the reconnect attempt ceiling.
func WithMaxAttempts(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) ClientOption {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a live-sync client for the given socket URI.
func NewClient(uri string, dialer Dialer, creds CredentialProvider, opts ...ClientOption) *Client {
	c := &Client{
		uri:               uri,
		dialer:            dialer,
		creds:             creds,
		logger:            logging.Component("livesync"),
		heartbeatInterval: DefaultHeartbeatInterval,
		retryInterval:     DefaultRetryInterval,
		maxAttempts:       DefaultMaxAttempts,
		now:               time.Now,
		newID:             func() string { return uuid.New().String() },
		subs:              make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns the current escalation aggregate.
func (c *Client) Stats() models.EscalationStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// LastEvent returns the most recent inbound event, or nil.
func (c *Client) LastEvent() *ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastEvent == nil {
		return nil
	}
	event := *c.lastEvent
	return &event
}

// Err returns the persistent connection error recorded when the retry
// budget was exhausted. It survives Disconnect, so callers tearing the
// client down can still report why the stream died; the next Connect
// clears it.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Connect starts the connection loop. It is a logged no-op while a
// connection is already up or being established, and a silent no-op when
// no credential is available yet; neither consumes a retry attempt.
// Calling Connect on a terminal client starts over with a fresh attempt
// budget.
func (c *Client) Connect(ctx context.Context) error {
	token, err := c.creds(ctx)
	if err != nil {
		return fmt.Errorf("resolve credential: %w", err)
	}
	if token == "" {
		c.logger.Debug().Msg("no credential available, skipping connect")
		return nil
	}

	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		c.logger.Info().Str("state", c.state.String()).Msg("connect ignored, already active")
		return nil
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.state = StateConnecting
	c.lastErr = nil
	c.mu.Unlock()

	c.wg.Add(1)
	go c.run(runCtx)
	return nil
}

// Disconnect closes the socket intentionally. No retry follows; heartbeat
// and reconnect timers are torn down before it returns.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()

	c.mu.Lock()
	c.state = StateDisconnected
	c.conn = nil
	c.mu.Unlock()
	c.logger.Info().Msg("disconnected")
}

// Subscribe registers interest in one escalation's events. The
// subscription is replayed after every reconnect.
func (c *Client) Subscribe(ctx context.Context, escalationID string) error {
	c.mu.Lock()
	c.subs[escalationID] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.send(ctx, conn, map[string]string{"type": "subscribe", "escalation_id": escalationID})
}

// Unsubscribe drops interest in one escalation's events.
func (c *Client) Unsubscribe(ctx context.Context, escalationID string) error {
	c.mu.Lock()
	delete(c.subs, escalationID)
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return c.send(ctx, conn, map[string]string{"type": "unsubscribe", "escalation_id": escalationID})
}

// run is the connection loop: dial, serve until the socket drops, then
// redial on the fixed interval. Each failed dial consumes one attempt;
// a served connection resets the budget.
func (c *Client) run(ctx context.Context) {
	defer c.wg.Done()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		token, err := c.creds(ctx)
		if err == nil && token == "" {
			// Credential went away mid-stream. Wait it out without
			// consuming an attempt.
			if !sleepUntil(ctx, c.retryInterval) {
				return
			}
			continue
		}

		uri := c.uri
		if err == nil {
			uri = credentialURI(c.uri, token)
		}

		attempts++
		conn, dialErr := c.dialer(ctx, uri)
		if dialErr != nil {
			c.logger.Warn().Err(dialErr).
				Int("attempt", attempts).
				Str("uri", logging.RedactURL(uri)).
				Msg("dial failed")
			if attempts >= c.maxAttempts {
				c.terminal(dialErr, attempts)
				return
			}
			c.mu.Lock()
			c.state = StateDisconnected
			c.mu.Unlock()
			if !sleepUntil(ctx, c.retryInterval) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.state = StateConnected
		c.mu.Unlock()
		attempts = 0
		c.logger.Info().Str("uri", logging.RedactURL(c.uri)).Msg("connected")
		c.publishConnection(models.EventTypeConnected, 0, nil)
		c.resubscribe(ctx, conn)

		serveErr := c.serve(ctx, conn)
		conn.Close()

		c.mu.Lock()
		c.conn = nil
		intentional := ctx.Err() != nil
		if !intentional {
			c.state = StateDisconnected
		}
		c.mu.Unlock()

		if intentional {
			return
		}
		c.logger.Warn().Err(serveErr).Msg("connection lost")
		c.publishConnection(models.EventTypeConnectionLost, 0, serveErr)
		if !sleepUntil(ctx, c.retryInterval) {
			return
		}
	}
}

// serve reads events until the socket fails, keeping the heartbeat alive
// in a sibling goroutine.
func (c *Client) serve(ctx context.Context, conn Conn) error {
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.heartbeat(heartbeatCtx, conn)
	}()

	for {
		data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var event ServerEvent
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.Warn().Err(err).Msg("malformed event dropped")
			continue
		}
		c.handle(&event)
	}
}

// heartbeat sends a keep-alive on a fixed cadence while the connection is
// up. A write failure is left for the read loop to observe.
func (c *Client) heartbeat(ctx context.Context, conn Conn) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.send(ctx, conn, map[string]string{"type": "heartbeat"}); err != nil {
				c.logger.Warn().Err(err).Msg("heartbeat failed")
				return
			}
		}
	}
}

func (c *Client) handle(event *ServerEvent) {
	c.mu.Lock()
	c.lastEvent = event
	updated, changed := applyEvent(c.stats, event)
	c.stats = updated
	c.mu.Unlock()

	switch event.Type {
	case eventConnectionEstablished:
		c.logger.Debug().Msg("server acknowledged connection")
	case eventEscalationCreated:
		c.recordEscalation(event, models.EventTypeEscalationCreated)
	case eventEscalationUpdated:
		if event.SubType == subTypeAssigned {
			c.recordEscalation(event, models.EventTypeEscalationAssigned)
		} else if event.Status == statusInProgress {
			c.recordEscalation(event, models.EventTypeEscalationInProgress)
		} else {
			c.logger.Debug().
				Str("sub_type", event.SubType).
				Str("status", event.Status).
				Msg("unrecognized escalation update")
		}
	case eventEscalationResolved:
		c.recordEscalation(event, models.EventTypeEscalationResolved)
	case eventStatsUpdated:
		if changed {
			c.publishStats(models.EventTypeStatsReplaced)
		}
	case eventPong:
		c.logger.Debug().Msg("pong")
	case eventError:
		c.logger.Warn().Str("message", event.Message).Msg("server error event")
	default:
		c.logger.Debug().Str("type", event.Type).Msg("unhandled event type")
	}
}

// recordEscalation appends the event to the durable log and publishes the
// updated aggregate. Both sinks are best-effort.
func (c *Client) recordEscalation(event *ServerEvent, eventType models.EventType) {
	if c.log != nil {
		payload, _ := json.Marshal(event)
		entry := &models.EscalationEvent{
			Type:         event.Type,
			EscalationID: event.EscalationID,
			Timestamp:    c.now().UTC(),
			Payload:      string(payload),
		}
		if err := c.log.Append(context.Background(), entry); err != nil {
			c.logger.Warn().Err(err).Msg("escalation log append failed")
		}
	}
	c.publishEscalation(event, eventType)
}

func (c *Client) terminal(cause error, attempts int) {
	err := fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempts, cause)
	c.mu.Lock()
	c.state = StateTerminal
	c.lastErr = err
	c.mu.Unlock()
	c.logger.Error().Err(err).Msg("giving up on reconnect")
	c.publishConnection(models.EventTypeConnectionTerminal, attempts, err)
}

func (c *Client) resubscribe(ctx context.Context, conn Conn) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		if err := c.send(ctx, conn, map[string]string{"type": "subscribe", "escalation_id": id}); err != nil {
			c.logger.Warn().Err(err).Str("escalation_id", id).Msg("resubscribe failed")
			return
		}
	}
}

func (c *Client) send(ctx context.Context, conn Conn, message map[string]string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return conn.Write(ctx, data)
}

func (c *Client) publishConnection(eventType models.EventType, attempts int, cause error) {
	if c.publisher == nil {
		return
	}
	payload := models.ConnectionPayload{Attempts: attempts}
	if cause != nil {
		payload.Error = cause.Error()
	}
	data, _ := json.Marshal(payload)
	c.publish(eventType, models.EntityTypeConnection, "", data)
}

func (c *Client) publishEscalation(event *ServerEvent, eventType models.EventType) {
	if c.publisher == nil {
		return
	}
	data, _ := json.Marshal(models.StatsPayload{Stats: c.Stats()})
	c.publish(eventType, models.EntityTypeEscalation, event.EscalationID, data)
}

func (c *Client) publishStats(eventType models.EventType) {
	if c.publisher == nil {
		return
	}
	data, _ := json.Marshal(models.StatsPayload{Stats: c.Stats()})
	c.publish(eventType, models.EntityTypeEscalation, "", data)
}

func (c *Client) publish(eventType models.EventType, entityType models.EntityType, entityID string, payload json.RawMessage) {
	c.publisher.Publish(context.Background(), &models.Event{
		ID:         c.newID(),
		Timestamp:  c.now(),
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
		Payload:    payload,
	})
}

func sleepUntil(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
