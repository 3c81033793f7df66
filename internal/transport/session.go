package transport

import (
	"context"
	"sync"
	"time"

	"scout-sync/internal/config"
	"scout-sync/internal/constants"
	"scout-sync/internal/identity"
	"scout-sync/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateConnecting   SessionState = "connecting"
	StateConnected    SessionState = "connected"
)

// Session keeps the live channel to the central server alive. It owns the
// websocket connection, the outbound queue, and the reconnect policy; it is
// an explicit object with a start/stop lifecycle, wired by the composition
// root.
type Session struct {
	url    string
	device identity.DeviceIdentity
	logger zerolog.Logger
	dialer *websocket.Dialer

	mu    sync.RWMutex
	state SessionState
	conn  *websocket.Conn

	handlerMu    sync.RWMutex
	handlers     map[MessageType]Handler
	connectHooks []func()

	queue *outboundQueue

	kick    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	started bool
}

func NewSession(cfg *config.Config, device identity.DeviceIdentity, logger zerolog.Logger) *Session {
	return &Session{
		url:    cfg.LiveURL,
		device: device,
		logger: logger.With().Str("component", "session").Logger(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: constants.WSHandshakeTimeout,
		},
		state:    StateDisconnected,
		handlers: make(map[MessageType]Handler),
		queue:    newOutboundQueue(constants.OutboundQueueCapacity),
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// On registers the handler for one message type. Frames with no handler are
// ignored. Registration must happen before Start.
func (s *Session) On(t MessageType, h Handler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers[t] = h
}

// OnConnect registers a hook fired after every successful (re)connect, once
// the initial sync request is on the wire.
func (s *Session) OnConnect(hook func()) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.connectHooks = append(s.connectHooks, hook)
}

func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
	return nil
}

func (s *Session) Stop() {
	s.mu.Lock()
	started := s.started
	select {
	case <-s.stop:
		s.mu.Unlock()
		return
	default:
	}
	close(s.stop)
	if s.conn != nil {
		s.conn.Close()
	}
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

// Send queues a message for delivery. It never fails on a broken connection:
// while disconnected the message waits in the queue and the session is
// kicked to retry. The only error is a full queue.
func (s *Session) Send(msg Message) error {
	if msg.Origin == "" {
		msg.Origin = s.device.ID
	}
	if err := s.queue.Push(msg); err != nil {
		s.logger.Error().Str("type", string(msg.Type)).Msg("outbound queue full, dropping message")
		return err
	}
	if s.State() != StateConnected {
		s.Kick()
	}
	return nil
}

// Kick wakes a session that exhausted its reconnect attempts, e.g. when the
// device reports connectivity is back.
func (s *Session) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) QueueLen() int {
	return s.queue.Len()
}

func (s *Session) setState(state SessionState, conn *websocket.Conn) {
	s.mu.Lock()
	s.state = state
	s.conn = conn
	s.mu.Unlock()
}

func (s *Session) run() {
	defer close(s.done)
	defer s.setState(StateDisconnected, nil)

	attempts := 0
	delay := constants.ReconnectBaseDelay

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		s.setState(StateConnecting, nil)
		conn, _, err := s.dialer.Dial(s.url, nil)
		if err != nil {
			attempts++
			metrics.Reconnects.Inc()
			s.setState(StateDisconnected, nil)

			if attempts >= constants.ReconnectMaxAttempts {
				s.logger.Warn().
					Int("attempts", attempts).
					Msg("reconnect attempts exhausted, waiting for external trigger")
				select {
				case <-s.stop:
					return
				case <-s.kick:
					attempts = 0
					delay = constants.ReconnectBaseDelay
					continue
				}
			}

			s.logger.Debug().Err(err).Dur("delay", delay).Int("attempt", attempts).Msg("connect failed, backing off")
			select {
			case <-s.stop:
				return
			case <-time.After(delay):
			case <-s.kick:
			}
			delay = nextDelay(delay)
			continue
		}

		attempts = 0
		delay = constants.ReconnectBaseDelay
		s.setState(StateConnected, conn)
		s.logger.Info().Str("url", s.url).Msg("live channel connected")

		// Pull server state before anything else goes out.
		if err := s.writeMessage(conn, SyncRequestMessage(s.device.ID)); err != nil {
			s.logger.Warn().Err(err).Msg("failed to send initial sync request")
			conn.Close()
			s.setState(StateDisconnected, nil)
			continue
		}
		s.fireConnectHooks()

		s.serve(conn)
		conn.Close()
		s.setState(StateDisconnected, nil)
		s.logger.Info().Msg("live channel disconnected")
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > constants.ReconnectMaxDelay {
		d = constants.ReconnectMaxDelay
	}
	return d
}

func (s *Session) fireConnectHooks() {
	s.handlerMu.RLock()
	hooks := make([]func(), len(s.connectHooks))
	copy(hooks, s.connectHooks)
	s.handlerMu.RUnlock()
	for _, hook := range hooks {
		go hook()
	}
}

// serve runs the write pump in the background and reads until the connection
// breaks.
func (s *Session) serve(conn *websocket.Conn) {
	writeStop := make(chan struct{})
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		s.writeLoop(conn, writeStop)
	}()

	s.readLoop(conn)
	close(writeStop)
	<-writeDone
}

func (s *Session) writeLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(constants.WSPingInterval)
	defer ticker.Stop()

	// Flush anything queued while offline before new traffic.
	if err := s.drainQueue(conn); err != nil {
		conn.Close()
		return
	}

	for {
		select {
		case <-stop:
			return
		case <-s.stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(constants.WSWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Debug().Err(err).Msg("ping failed")
				conn.Close()
				return
			}
		case <-s.queue.Notify():
			if err := s.drainQueue(conn); err != nil {
				conn.Close()
				return
			}
		}
	}
}

// drainQueue writes queued messages in submission order, acknowledging each
// only once it is on the wire.
func (s *Session) drainQueue(conn *websocket.Conn) error {
	for {
		msg, ok := s.queue.Peek()
		if !ok {
			return nil
		}
		conn.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Warn().Err(err).Str("type", string(msg.Type)).Msg("send failed, message stays queued")
			return err
		}
		s.queue.Ack()
		s.logger.Debug().Str("type", string(msg.Type)).Msg("message sent")
	}
}

func (s *Session) writeMessage(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(constants.WSWriteTimeout))
	return conn.WriteJSON(msg)
}

func (s *Session) readLoop(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(2 * constants.WSPingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * constants.WSPingInterval))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stop:
			default:
				s.logger.Debug().Err(err).Msg("read failed")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(2 * constants.WSPingInterval))

		msg, err := decodeMessage(data)
		if err != nil {
			s.logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		// A broadcast of our own action must not be reprocessed.
		if msg.Origin != "" && msg.Origin == s.device.ID {
			s.logger.Debug().Str("type", string(msg.Type)).Msg("echo suppressed")
			continue
		}

		s.handlerMu.RLock()
		handler, ok := s.handlers[msg.Type]
		s.handlerMu.RUnlock()
		if !ok {
			s.logger.Debug().Str("type", string(msg.Type)).Msg("ignoring unknown message type")
			continue
		}
		handler(msg)
	}
}
