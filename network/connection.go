package network

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrMaxPeers is returned when a connection would exceed MaxPeers
var ErrMaxPeers = errors.New("max peers reached")

// PeerID identifies a connection for the lifetime of the process
type PeerID uint32

// packet is a message already framed for the wire, shared by every watcher it is queued to
type packet []byte

func encodePacket(msg *Message) (packet, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(msg.Payload))
	if err := msg.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// isFeed reports whether t is numbered in the feed sequence
func isFeed(t MessageType) bool {
	return t == MsgToken || t == MsgSnapshot
}

// Peer is one end of the feed
// On the server it is a watcher fed through its queue; on the client it is the server
type Peer struct {
	ID       PeerID
	Addr     string
	LastSeen atomic.Int64 // UnixNano of the last inbound message

	// Dropped counts packets refused because the watcher's queue was full
	Dropped atomic.Uint64
	// Missed counts feed sequence numbers skipped by the sender
	Missed atomic.Uint64

	conn        net.Conn
	reader      *bufio.Reader
	writer      *bufio.Writer
	readTimeout time.Duration
	lastSeq     uint32 // Read loop only

	queue     chan packet
	closed    chan struct{}
	closeOnce sync.Once
}

func newPeer(id PeerID, conn net.Conn, cfg *Config) *Peer {
	p := &Peer{
		ID:          id,
		Addr:        conn.RemoteAddr().String(),
		conn:        conn,
		reader:      bufio.NewReaderSize(conn, cfg.ReadBufferSize),
		writer:      bufio.NewWriterSize(conn, cfg.WriteBufferSize),
		readTimeout: cfg.ReadTimeout,
		queue:       make(chan packet, cfg.SendQueueSize),
		closed:      make(chan struct{}),
	}
	p.LastSeen.Store(time.Now().UnixNano())
	return p
}

// enqueue hands pkt to the write loop without blocking the publisher
func (p *Peer) enqueue(pkt packet) bool {
	select {
	case <-p.closed:
		return false
	default:
	}
	select {
	case p.queue <- pkt:
		return true
	default:
		p.Dropped.Add(1)
		return false
	}
}

// Close shuts the connection once
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
}

// Done is closed once the peer shuts down
func (p *Peer) Done() <-chan struct{} {
	return p.closed
}

// readLoop decodes inbound messages until the connection fails, goes silent past
// readTimeout, or the remote says goodbye
// Watchers only send heartbeats, so on the server this loop is a liveness check
func (p *Peer) readLoop(deliver func(PeerID, *Message)) {
	defer p.Close()

	for {
		if p.readTimeout > 0 {
			p.conn.SetReadDeadline(time.Now().Add(p.readTimeout))
		}
		msg, err := Decode(p.reader)
		if err != nil {
			return
		}
		p.LastSeen.Store(time.Now().UnixNano())

		switch {
		case msg.Type == MsgDisconnect:
			return
		case isFeed(msg.Type):
			if p.lastSeq != 0 && msg.Seq > p.lastSeq+1 {
				p.Missed.Add(uint64(msg.Seq - p.lastSeq - 1))
			}
			if msg.Seq > p.lastSeq {
				p.lastSeq = msg.Seq
			}
		}
		deliver(p.ID, msg)
	}
}

// writeLoop drains the queue, flushing only when it runs dry
func (p *Peer) writeLoop() {
	defer p.Close()

	for {
		select {
		case <-p.closed:
			return
		case pkt := <-p.queue:
			if _, err := p.writer.Write(pkt); err != nil {
				return
			}
			if len(p.queue) > 0 {
				continue
			}
			if err := p.writer.Flush(); err != nil {
				return
			}
		}
	}
}

// hub tracks the connected peers and fans feed messages out to them
type hub struct {
	cfg *Config

	mu     sync.RWMutex
	peers  map[PeerID]*Peer
	nextID PeerID

	seq     atomic.Uint32 // Feed sequence, shared by every watcher
	retired atomic.Uint64 // Missed counts of peers already released

	onConnect    func(PeerID)
	onDisconnect func(PeerID)
	onMessage    func(PeerID, *Message)
}

func newHub(cfg *Config) *hub {
	return &hub{
		cfg:   cfg,
		peers: make(map[PeerID]*Peer),
	}
}

// add registers conn and starts its loops
// onConnect runs before the read loop so a greeting precedes any feed traffic
func (h *hub) add(conn net.Conn) (PeerID, error) {
	h.mu.Lock()
	if len(h.peers) >= h.cfg.MaxPeers {
		h.mu.Unlock()
		conn.Close()
		return 0, ErrMaxPeers
	}
	h.nextID++
	p := newPeer(h.nextID, conn, h.cfg)
	h.peers[p.ID] = p
	h.mu.Unlock()

	if h.onConnect != nil {
		h.onConnect(p.ID)
	}

	go p.readLoop(h.deliver)
	go p.writeLoop()
	go h.release(p)

	return p.ID, nil
}

func (h *hub) deliver(id PeerID, msg *Message) {
	if h.onMessage != nil {
		h.onMessage(id, msg)
	}
}

// release forgets p once it closes
func (h *hub) release(p *Peer) {
	<-p.closed

	h.mu.Lock()
	delete(h.peers, p.ID)
	h.retired.Add(p.Missed.Load())
	h.mu.Unlock()

	if h.onDisconnect != nil {
		h.onDisconnect(p.ID)
	}
}

// sendTo queues msg for one peer
func (h *hub) sendTo(id PeerID, msg *Message) bool {
	h.mu.RLock()
	p, ok := h.peers[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	pkt, err := encodePacket(msg)
	if err != nil {
		return false
	}
	return p.enqueue(pkt)
}

// publish numbers feed messages, encodes msg once and queues it to every peer
// Returns how many peers accepted it
func (h *hub) publish(msg *Message) int {
	if isFeed(msg.Type) {
		msg.Seq = h.seq.Add(1)
	}
	pkt, err := encodePacket(msg)
	if err != nil {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	accepted := 0
	for _, p := range h.peers {
		if p.enqueue(pkt) {
			accepted++
		}
	}
	return accepted
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// missed sums feed gaps seen by current and released peers
func (h *hub) missed() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := h.retired.Load()
	for _, p := range h.peers {
		n += p.Missed.Load()
	}
	return n
}

func (h *hub) closeAll() {
	h.mu.RLock()
	peers := make([]*Peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		p.Close()
	}
}

// dial connects to a feed server, optionally over TLS
func dial(addr string, cfg *Config) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	if cfg.TLS != nil {
		return tls.DialWithDialer(dialer, "tcp", addr, cfg.TLS)
	}
	return dialer.Dial("tcp", addr)
}
