package hub

import (
	"bufio"
	"net"
	"sync"

	"github.com/sentinelgraph/sentinel/pkg/bus"
	"github.com/sentinelgraph/sentinel/pkg/ipc"
	"github.com/sentinelgraph/sentinel/pkg/log"
)

// MessageType distinguishes the two directions a duplex session carries
// (spec §6 "Daemon -> hub"): events flow agent -> hub, intents hub ->
// agent, over the same framed connection.
type MessageType string

const (
	MessageEvent  MessageType = "event"
	MessageIntent MessageType = "intent"
)

// IntentMsg is the hub -> agent command schema (spec §6: "intent schema
// is {op, target, args}").
type IntentMsg struct {
	Op     string            `json:"op"`
	Target int               `json:"target"`
	Args   map[string]string `json:"args,omitempty"`
}

// Message is one frame exchanged over a duplex session.
type Message struct {
	Type   MessageType `json:"type"`
	Event  *bus.Event  `json:"event,omitempty"`
	Intent *IntentMsg  `json:"intent,omitempty"`
}

// Session wraps one agent's long-lived duplex connection to the hub
// (spec §4.7). Reads (events) and writes (intents) are independent;
// SendIntent serializes concurrent writers since multiple HTTP /fix
// requests may target the same host.
type Session struct {
	HostID string

	conn   net.Conn
	reader *bufio.Reader
	wmu    sync.Mutex
}

// NewSession wraps an accepted connection. hostID is learned from the
// session's first event frame, not supplied up front, since the listener
// itself is host-agnostic.
func NewSession(conn net.Conn) *Session {
	return &Session{conn: conn, reader: bufio.NewReader(conn)}
}

// SendIntent frames and writes an intent message to the agent.
func (s *Session) SendIntent(op string, target int, args map[string]string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return ipc.WriteFrame(s.conn, Message{Type: MessageIntent, Intent: &IntentMsg{Op: op, Target: target, Args: args}})
}

// ReadMessage blocks for the next frame from the agent.
func (s *Session) ReadMessage() (Message, error) {
	var m Message
	err := ipc.ReadFrame(s.reader, ipc.MaxRequestBytes, &m)
	return m, err
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Serve reads events off the session until it errors or ctx-equivalent
// closure, applying each to hub's per-host subgraph and registering the
// session under the host id carried by its first event frame. Failure of
// one session never blocks others (spec §4.7): Serve returns on its own
// read error without touching any other session.
func (h *Hub) Serve(conn net.Conn) {
	s := NewSession(conn)
	defer s.Close()

	l := log.WithComponent("hub")
	var hostID string
	defer func() {
		if hostID != "" {
			h.DropSession(hostID)
		}
	}()

	for {
		msg, err := s.ReadMessage()
		if err != nil {
			if hostID != "" {
				l.Warn().Err(err).Str("host_id", hostID).Msg("agent session closed")
			}
			return
		}
		if msg.Type != MessageEvent || msg.Event == nil {
			continue
		}
		if hostID == "" {
			hostID = msg.Event.HostID
			if hostID == "" {
				l.Warn().Msg("first event on session carried no host_id, dropping connection")
				return
			}
			s.HostID = hostID
			h.RegisterSession(hostID, s)
			l.Info().Str("host_id", hostID).Msg("agent session established")
		}
		if err := h.ApplyEvent(hostID, *msg.Event); err != nil {
			l.Warn().Err(err).Str("host_id", hostID).Msg("event rejected")
		}
	}
}
