package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"roadwatch/internal/logger"
	"roadwatch/internal/models"
)

// ConnState is the lifecycle state of the streaming channel.
type ConnState string

const (
	StateDisconnected      ConnState = "disconnected"
	StateConnecting        ConnState = "connecting"
	StateConnected         ConnState = "connected"
	StateReconnecting      ConnState = "reconnecting"
	StatePermanentlyClosed ConnState = "permanently_closed"
)

// Config controls one streaming channel session.
type Config struct {
	Endpoint          string // base service URL, e.g. ws://host:8080
	ClientID          string
	MaxFrameRate      float64       // frames per second ceiling
	HeartbeatInterval time.Duration // liveness probe period
	ReconnectDelay    time.Duration // fixed backoff between reconnect attempts
	ConnectTimeout    time.Duration // bound on dial + handshake
	AutoReconnect     bool
	PendingFrames     int // correlation table capacity
	ResultBuffer      int
	ErrorBuffer       int
}

func (c *Config) withDefaults() {
	if c.MaxFrameRate <= 0 {
		c.MaxFrameRate = 5
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.PendingFrames <= 0 {
		c.PendingFrames = 64
	}
	if c.ResultBuffer <= 0 {
		c.ResultBuffer = 32
	}
	if c.ErrorBuffer <= 0 {
		c.ErrorBuffer = 32
	}
}

// Stats is a snapshot of channel counters.
type Stats struct {
	Submitted  uint64 `json:"submitted"`
	Throttled  uint64 `json:"throttled"`
	Dropped    uint64 `json:"dropped"`
	Results    uint64 `json:"results"`
	Reconnects uint64 `json:"reconnects"`
}

type connectRequest struct {
	ctx  context.Context
	done chan error
}

type readEvent struct {
	detection *models.DetectionMessage
	pong      bool
	serverErr string
	err       error
}

// Channel is the edge-client side of the detection streaming protocol.
// A single goroutine owns the connection and the state machine; all
// public methods communicate with it via channels and never share state.
type Channel struct {
	cfg Config
	log *logger.Logger

	gate    *Gate
	pending *lru.Cache[string, models.FrameSubmission]

	state atomic.Value // ConnState

	results chan models.DetectionResult
	errs    chan error

	connectCh    chan connectRequest
	disconnectCh chan chan struct{}
	outbound     chan models.FrameSubmission
	closed       chan struct{}

	submitted  atomic.Uint64
	throttled  atomic.Uint64
	dropped    atomic.Uint64
	delivered  atomic.Uint64
	reconnects atomic.Uint64
}

// New creates a Channel and starts its state machine. The channel begins
// Disconnected; call Connect to establish the session.
func New(cfg Config, log *logger.Logger) *Channel {
	cfg.withDefaults()

	pending, _ := lru.New[string, models.FrameSubmission](cfg.PendingFrames)

	c := &Channel{
		cfg:          cfg,
		log:          log,
		gate:         NewGate(cfg.MaxFrameRate),
		pending:      pending,
		results:      make(chan models.DetectionResult, cfg.ResultBuffer),
		errs:         make(chan error, cfg.ErrorBuffer),
		connectCh:    make(chan connectRequest),
		disconnectCh: make(chan chan struct{}),
		outbound:     make(chan models.FrameSubmission, 1),
		closed:       make(chan struct{}),
	}
	c.state.Store(StateDisconnected)

	go c.loop()
	return c
}

// State returns the current connection state.
func (c *Channel) State() ConnState {
	return c.state.Load().(ConnState)
}

// Results returns the stream of detection results. The stream is
// infinite and non-restartable; it closes only on permanent close.
func (c *Channel) Results() <-chan models.DetectionResult {
	return c.results
}

// Errors returns the stream of transport and submission errors.
// Transport failures are never returned synchronously; they arrive here.
func (c *Channel) Errors() <-chan error {
	return c.errs
}

// Stats returns a snapshot of the channel counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Submitted:  c.submitted.Load(),
		Throttled:  c.throttled.Load(),
		Dropped:    c.dropped.Load(),
		Results:    c.delivered.Load(),
		Reconnects: c.reconnects.Load(),
	}
}

// Connect establishes the session. It suspends until the handshake
// completes or fails; the dial is bounded by ConnectTimeout.
func (c *Channel) Connect(ctx context.Context) error {
	req := connectRequest{ctx: ctx, done: make(chan error, 1)}

	select {
	case c.connectCh <- req:
	case <-c.closed:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues one frame for detection, fire-and-forget. It never
// blocks: frames above the rate ceiling or hitting a full send buffer
// are dropped with an informational error on the Errors stream.
func (c *Channel) Submit(frame models.FrameSubmission) error {
	if st := c.State(); st != StateConnected {
		err := fmt.Errorf("%w (state %s)", ErrNotConnected, st)
		c.reportErr(err)
		return err
	}

	if !c.gate.Allow() {
		c.throttled.Add(1)
		c.log.Warning("Frame %s throttled: above %0.1f fps ceiling", frame.FrameID, c.cfg.MaxFrameRate)
		c.reportErr(&ThrottledDropError{FrameID: frame.FrameID})
		return nil
	}

	if frame.SubmittedAt.IsZero() {
		frame.SubmittedAt = time.Now()
	}

	select {
	case c.outbound <- frame:
		return nil
	default:
		c.dropped.Add(1)
		c.reportErr(fmt.Errorf("frame %s dropped: send buffer full", frame.FrameID))
		return nil
	}
}

// Disconnect releases the session, disables auto-reconnect and cancels
// any pending reconnect timer. Effective from any state.
func (c *Channel) Disconnect() {
	done := make(chan struct{})
	select {
	case c.disconnectCh <- done:
		<-done
	case <-c.closed:
	}
}

func (c *Channel) reportErr(err error) {
	select {
	case c.errs <- err:
	default:
		// Error stream full; drop rather than block.
	}
}

// loop owns the connection and the state machine. Transitions happen
// only here, driven by messages from the public methods, the read pump,
// the heartbeat ticker and the reconnect timer.
func (c *Channel) loop() {
	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	var (
		conn           *websocket.Conn
		events         chan readEvent
		pumpStop       chan struct{}
		reconnectTimer *time.Timer
		reconnectC     <-chan time.Time
		awaitingPong   bool
		lastFrame      *models.FrameSubmission
		auto           = c.cfg.AutoReconnect
	)

	setState := func(s ConnState) {
		c.state.Store(s)
	}

	teardown := func() {
		if conn != nil {
			conn.Close()
			conn = nil
		}
		if pumpStop != nil {
			close(pumpStop)
			pumpStop = nil
		}
		events = nil
		awaitingPong = false
	}

	cancelReconnect := func() {
		if reconnectTimer != nil {
			reconnectTimer.Stop()
			reconnectTimer = nil
			reconnectC = nil
		}
	}

	// scheduleReconnect arms the fixed-interval backoff timer. At most
	// one timer is ever pending.
	scheduleReconnect := func() {
		setState(StateReconnecting)
		if reconnectC == nil {
			reconnectTimer = time.NewTimer(c.cfg.ReconnectDelay)
			reconnectC = reconnectTimer.C
		}
	}

	permanentClose := func() {
		cancelReconnect()
		teardown()
		setState(StatePermanentlyClosed)
		close(c.results)
		close(c.closed)
	}

	attach := func(newConn *websocket.Conn) {
		conn = newConn
		events = make(chan readEvent, 16)
		pumpStop = make(chan struct{})
		awaitingPong = false
		setState(StateConnected)
		go c.readPump(newConn, events, pumpStop)
	}

	// onTransportLost handles a dropped transport from any source: read
	// error, write error or heartbeat timeout. Returns false when the
	// loop must exit.
	onTransportLost := func(err error) bool {
		teardown()
		c.reportErr(&ConnectionError{Err: err})
		if auto {
			scheduleReconnect()
			return true
		}
		permanentClose()
		return false
	}

	for {
		select {
		case req := <-c.connectCh:
			if conn != nil {
				req.done <- nil
				continue
			}
			cancelReconnect()
			setState(StateConnecting)
			newConn, err := c.dial(req.ctx)
			if err != nil {
				connErr := &ConnectionError{Err: err}
				if auto {
					scheduleReconnect()
					req.done <- connErr
					continue
				}
				req.done <- connErr
				permanentClose()
				return
			}
			attach(newConn)
			req.done <- nil

		case <-reconnectC:
			reconnectTimer = nil
			reconnectC = nil
			setState(StateConnecting)
			ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
			newConn, err := c.dial(ctx)
			cancel()
			if err != nil {
				c.reportErr(&ConnectionError{Err: err})
				if auto {
					scheduleReconnect()
					continue
				}
				permanentClose()
				return
			}
			attach(newConn)
			c.reconnects.Add(1)
			c.log.Info("Channel %s reconnected to %s", c.cfg.ClientID, c.cfg.Endpoint)
			// Best-effort resend of the most recent frame.
			if lastFrame != nil {
				if err := c.writeFrame(conn, *lastFrame); err == nil {
					c.submitted.Add(1)
				}
			}

		case ev := <-events:
			if ev.err != nil {
				if !onTransportLost(ev.err) {
					return
				}
				continue
			}
			c.handleEvent(ev, &awaitingPong)

		case frame := <-c.outbound:
			if conn == nil {
				c.dropped.Add(1)
				c.reportErr(fmt.Errorf("frame %s dropped: %w", frame.FrameID, ErrNotConnected))
				continue
			}
			f := frame
			lastFrame = &f
			c.pending.Add(frame.FrameID, frame)
			if err := c.writeFrame(conn, frame); err != nil {
				if !onTransportLost(err) {
					return
				}
				continue
			}
			c.submitted.Add(1)

		case <-heartbeat.C:
			if conn == nil {
				continue
			}
			if awaitingPong {
				// Unanswered probe: treat exactly like a transport drop.
				if !onTransportLost(errors.New("heartbeat timeout")) {
					return
				}
				continue
			}
			awaitingPong = true
			if err := conn.WriteJSON(models.PingMessage{Type: models.MsgTypePing}); err != nil {
				if !onTransportLost(err) {
					return
				}
			}

		case done := <-c.disconnectCh:
			auto = false
			if conn != nil {
				_ = conn.WriteJSON(models.DisconnectMessage{Type: models.MsgTypeDisconnect})
			}
			permanentClose()
			close(done)
			return
		}
	}
}

// dial establishes the websocket and waits for the service handshake.
func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	url := strings.TrimRight(c.cfg.Endpoint, "/") + "/ws/detect/" + c.cfg.ClientID

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout))
	var hello models.ConnectedMessage
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake read: %w", err)
	}
	if hello.Type != models.MsgTypeConnected {
		conn.Close()
		return nil, fmt.Errorf("unexpected handshake message %q", hello.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	return conn, nil
}

func (c *Channel) writeFrame(conn *websocket.Conn, frame models.FrameSubmission) error {
	msg := models.FrameMessage{
		Type:             models.MsgTypeFrame,
		Data:             frame.Payload,
		FrameID:          frame.FrameID,
		Timestamp:        float64(frame.SubmittedAt.UnixNano()) / 1e9,
		IncludeAnnotated: frame.IncludeAnnotated,
		Location:         frame.Location,
	}
	return conn.WriteJSON(msg)
}

// handleEvent processes a decoded message from the read pump.
func (c *Channel) handleEvent(ev readEvent, awaitingPong *bool) {
	switch {
	case ev.pong:
		*awaitingPong = false

	case ev.serverErr != "":
		c.reportErr(&ServerError{Message: ev.serverErr})

	case ev.detection != nil:
		msg := ev.detection
		if _, ok := c.pending.Get(msg.FrameID); ok {
			c.pending.Remove(msg.FrameID)
		} else {
			// Unmatched results are still delivered for observability.
			c.log.Warning("Result for unknown frame %s", msg.FrameID)
		}
		result := models.DetectionResult{
			FrameID:          msg.FrameID,
			Detections:       msg.Detections,
			DetectionCount:   msg.DetectionCount,
			ProcessingTimeMS: msg.ProcessingTimeMS,
			Timestamp:        msg.Timestamp,
			AnnotatedImage:   msg.AnnotatedImage,
		}
		select {
		case c.results <- result:
			c.delivered.Add(1)
		default:
			c.dropped.Add(1)
			c.reportErr(fmt.Errorf("result for frame %s dropped: consumer lagging", msg.FrameID))
		}
	}
}

// readPump decodes inbound messages for one connection. It exits on the
// first read error, which the loop interprets as a transport drop, or
// when the loop detaches this connection.
func (c *Channel) readPump(conn *websocket.Conn, events chan<- readEvent, stop <-chan struct{}) {
	send := func(ev readEvent) bool {
		select {
		case events <- ev:
			return true
		case <-stop:
			return false
		}
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			send(readEvent{err: err})
			return
		}

		var header models.MessageHeader
		if err := json.Unmarshal(raw, &header); err != nil {
			c.log.Warning("Malformed message from service: %v", err)
			continue
		}

		switch header.Type {
		case models.MsgTypePong:
			if !send(readEvent{pong: true}) {
				return
			}

		case models.MsgTypeDetection:
			var msg models.DetectionMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				c.log.Warning("Malformed detection message: %v", err)
				continue
			}
			if !send(readEvent{detection: &msg}) {
				return
			}

		case models.MsgTypeError:
			var msg models.ErrorMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if !send(readEvent{serverErr: msg.Message}) {
				return
			}

		default:
			c.log.Warning("Unknown message type %q from service", header.Type)
		}
	}
}
