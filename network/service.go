package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lixenwraith/synapse/core"
	"github.com/lixenwraith/synapse/diagnostics"
	"github.com/lixenwraith/synapse/status"
	"github.com/lixenwraith/synapse/token"
)

// Service streams tokens and diagnostics to watchers (server role)
// or receives them from a feed (client role)
// PublishTokens and PublishSnapshot satisfy the scheduler's sink contract
type Service struct {
	config    *Config
	transport *Transport
	log       *logrus.Logger

	hello  atomic.Pointer[Hello]
	replay atomic.Bool

	// Client-side handlers, set before Start
	onHello    func(Hello)
	onToken    func(token.Token)
	onSnapshot func(*diagnostics.Snapshot)

	peersMetric *atomic.Int64
	sent        atomic.Uint64
	received    atomic.Uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// lost closes when a client loses its server
	lost     chan struct{}
	lostOnce sync.Once
}

// NewService validates cfg and builds an idle service
func NewService(cfg *Config, log *logrus.Logger) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	s := &Service{
		config: cfg,
		log:    log,
		stopCh: make(chan struct{}),
		lost:   make(chan struct{}),
	}
	if cfg.Role != RoleNone {
		s.transport = NewTransport(cfg, log)
		s.transport.SetHandlers(s.handleConnect, s.handleDisconnect, s.handleMessage)
	}
	return s, nil
}

// Name identifies the service in logs
func (s *Service) Name() string {
	return "network"
}

// SetHello sets the greeting sent to peers on connect
func (s *Service) SetHello(h Hello) {
	s.hello.Store(&h)
	s.replay.Store(h.Mode == "replay")
}

// SetHandlers installs client-side callbacks; nil entries are ignored
func (s *Service) SetHandlers(onHello func(Hello), onToken func(token.Token), onSnapshot func(*diagnostics.Snapshot)) {
	s.onHello = onHello
	s.onToken = onToken
	s.onSnapshot = onSnapshot
}

// AttachStatus publishes the connected peer count to reg
func (s *Service) AttachStatus(reg *status.Registry) {
	s.peersMetric = reg.Ints.Get(status.KeyPeers)
}

// Start opens the transport and begins heartbeats
func (s *Service) Start() error {
	if s.transport == nil {
		return nil
	}
	if err := s.transport.Start(); err != nil {
		return fmt.Errorf("start %s feed: %w", s.config.Role, err)
	}

	s.wg.Add(1)
	core.Go(func() {
		defer s.wg.Done()
		s.heartbeatLoop()
	})
	return nil
}

// Stop sends a disconnect to every peer and closes the transport
func (s *Service) Stop() error {
	if s.transport == nil {
		return nil
	}
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.transport.Broadcast(NewMessage(MsgDisconnect, nil))
		// Let write loops flush the disconnect before sockets close
		time.Sleep(10 * time.Millisecond)
		err = s.transport.Stop()
	})
	return err
}

// Run starts the service, blocks until ctx is done, then stops it
// In client role it also returns once the server goes away
func (s *Service) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-s.lost:
	}
	return s.Stop()
}

// Lost is closed when a client's server connection ends
func (s *Service) Lost() <-chan struct{} {
	return s.lost
}

// Addr returns the listening address in server role
func (s *Service) Addr() net.Addr {
	if s.transport == nil {
		return nil
	}
	return s.transport.Addr()
}

// PeerCount returns connected peer count
func (s *Service) PeerCount() int {
	if s.transport == nil {
		return 0
	}
	return s.transport.PeerCount()
}

// Sent returns the number of feed messages accepted by at least one peer
func (s *Service) Sent() uint64 { return s.sent.Load() }

// Received returns the number of feed messages decoded in client role
func (s *Service) Received() uint64 { return s.received.Load() }

// Missed returns feed messages the server dropped for this client, from sequence gaps
func (s *Service) Missed() uint64 {
	if s.transport == nil {
		return 0
	}
	return s.transport.Missed()
}

// PublishTokens broadcasts each token as one message
func (s *Service) PublishTokens(tokens []token.Token) {
	if s.transport == nil || s.config.Role != RoleServer || s.transport.PeerCount() == 0 {
		return
	}
	for i := range tokens {
		payload, err := json.Marshal(&tokens[i])
		if err != nil {
			s.log.WithError(err).WithField("token", tokens[i].ID).Warn("token encode failed")
			continue
		}
		s.broadcast(MsgToken, payload)
	}
}

// PublishSnapshot broadcasts a diagnostics snapshot
// The point cloud is dropped when the snapshot would not fit one message
func (s *Service) PublishSnapshot(snap *diagnostics.Snapshot) {
	if snap == nil || s.transport == nil || s.config.Role != RoleServer || s.transport.PeerCount() == 0 {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		s.log.WithError(err).Warn("snapshot encode failed")
		return
	}
	var flags uint8
	if len(payload) > MaxPayload {
		trimmed := *snap
		trimmed.Points = nil
		if payload, err = json.Marshal(&trimmed); err != nil || len(payload) > MaxPayload {
			s.log.WithField("bytes", len(payload)).Warn("snapshot too large for feed")
			return
		}
		flags |= FlagPartial
	}
	s.broadcast(MsgSnapshot, payload, flags)
}

func (s *Service) broadcast(t MessageType, payload []byte, flags ...uint8) {
	msg := NewMessage(t, payload)
	for _, f := range flags {
		msg.Flags |= f
	}
	if s.replay.Load() {
		msg.Flags |= FlagReplay
	}
	if s.transport.Broadcast(msg) > 0 {
		s.sent.Add(1)
	}
}

func (s *Service) heartbeatLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.transport.Broadcast(NewMessage(MsgHeartbeat, nil))
		}
	}
}

func (s *Service) handleConnect(id PeerID) {
	n := s.transport.PeerCount()
	s.log.WithFields(logrus.Fields{"peer": id, "peers": n}).Info("peer connected")
	if s.peersMetric != nil {
		s.peersMetric.Store(int64(n))
	}

	if s.config.Role != RoleServer {
		return
	}
	h := s.hello.Load()
	if h == nil {
		return
	}
	payload, err := json.Marshal(h)
	if err != nil {
		return
	}
	s.transport.Send(id, NewMessage(MsgHello, payload))
}

func (s *Service) handleDisconnect(id PeerID) {
	n := s.transport.PeerCount()
	s.log.WithFields(logrus.Fields{"peer": id, "peers": n}).Info("peer disconnected")
	if s.peersMetric != nil {
		s.peersMetric.Store(int64(n))
	}
	if s.config.Role == RoleClient {
		s.lostOnce.Do(func() { close(s.lost) })
	}
}

// handleMessage decodes feed messages in client role; servers ignore peer traffic
func (s *Service) handleMessage(id PeerID, msg *Message) {
	if s.config.Role != RoleClient {
		return
	}

	switch msg.Type {
	case MsgHello:
		var h Hello
		if err := json.Unmarshal(msg.Payload, &h); err != nil {
			s.log.WithError(err).Warn("bad hello")
			return
		}
		s.received.Add(1)
		if s.onHello != nil {
			s.onHello(h)
		}

	case MsgToken:
		var tok token.Token
		if err := json.Unmarshal(msg.Payload, &tok); err != nil {
			s.log.WithError(err).WithField("seq", msg.Seq).Warn("bad token")
			return
		}
		s.received.Add(1)
		if s.onToken != nil {
			s.onToken(tok)
		}

	case MsgSnapshot:
		var snap diagnostics.Snapshot
		if err := json.Unmarshal(msg.Payload, &snap); err != nil {
			s.log.WithError(err).WithField("seq", msg.Seq).Warn("bad snapshot")
			return
		}
		s.received.Add(1)
		if s.onSnapshot != nil {
			s.onSnapshot(&snap)
		}
	}
}
