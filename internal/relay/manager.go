package relay

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mvamarnath1/interview/internal/metrics"
	"github.com/mvamarnath1/interview/internal/models"
)

const DefaultQueueSize = 16

// Sessions is the part of the session registry the relay depends on.
type Sessions interface {
	Get(ctx context.Context, sessionID string) (models.Session, error)
	Touch(sessionID string) error
	MarkJoined(ctx context.Context, sessionID string) error
}

// Answerer produces a scored answer for a question asked in a session.
type Answerer interface {
	Answer(ctx context.Context, sessionID, userID, question string) (models.Answer, error)
}

// Binding ties a live client to a (session, role) pair. It is the handle
// returned by Bind and passed back to Forward and Disconnect.
type Binding struct {
	SessionID string
	Role      models.Role
	Client    *Client
	room      *Room
}

// Manager binds at most one client per (session, role) and relays frames
// between the two sides of a session.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room

	sessions  Sessions
	answerer  Answerer
	queueSize int
	logger    *zap.Logger

	workers sync.WaitGroup
}

func NewManager(sessions Sessions, answerer Answerer, queueSize int, logger *zap.Logger) *Manager {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Manager{
		rooms:     make(map[string]*Room),
		sessions:  sessions,
		answerer:  answerer,
		queueSize: queueSize,
		logger:    logger,
	}
}

// Bind attaches client as role in the session. A client already bound for
// that role is told it was superseded and closed.
func (m *Manager) Bind(ctx context.Context, sessionID string, role models.Role, client *Client) (*Binding, error) {
	if !role.Valid() {
		return nil, models.ErrInvalidRole
	}
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil || !session.State.Active() {
		return nil, models.ErrInvalidSession
	}

	room := m.room(session)
	prev, peer, ok := room.bind(role, client)
	if !ok {
		return nil, models.ErrInvalidSession
	}
	switch {
	case prev == nil:
		metrics.RelayConnections.Inc()
	case prev != client:
		_ = prev.Send(models.PresenceFrame(sessionID, role, models.PresenceSuperseded))
		prev.Close(models.PresenceSuperseded)
		m.logger.Info("binding superseded",
			zap.String("session_id", sessionID),
			zap.String("role", string(role)))
	}

	_ = client.Send(models.PresenceFrame(sessionID, role, models.PresenceConnected))
	if peer != nil {
		_ = peer.Send(models.PresenceFrame(sessionID, role, models.PresenceConnectedFor(role)))
		_ = client.Send(models.PresenceFrame(sessionID, role.Peer(), models.PresenceConnectedFor(role.Peer())))
	}

	if role == models.RoleCandidate {
		if err := m.sessions.MarkJoined(ctx, sessionID); err != nil {
			m.logger.Warn("failed to mark session joined", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	_ = m.sessions.Touch(sessionID)

	binding := &Binding{SessionID: sessionID, Role: role, Client: client, room: room}

	// the session may have ended between the state check and the bind
	if s, err := m.sessions.Get(ctx, sessionID); err != nil || !s.State.Active() {
		m.CloseSession(sessionID)
		return nil, models.ErrInvalidSession
	}
	return binding, nil
}

// Forward handles one raw frame received on b. Questions go to the session's
// answer queue; other frames are relayed to the peer, or dropped when the
// peer is not bound. A malformed frame is reported to the sender only and
// returns an error wrapping ErrProtocol; the connection stays usable.
func (m *Manager) Forward(b *Binding, data []byte) error {
	if !b.room.current(b.Role, b.Client) {
		return models.ErrInvalidSession
	}

	frame, err := models.ParseFrame(data)
	if err != nil {
		m.reject(b, err)
		return err
	}
	_ = m.sessions.Touch(b.SessionID)

	switch frame.Type {
	case models.FrameQuestion:
		text, err := frame.QuestionText()
		if err != nil {
			m.reject(b, err)
			return err
		}
		if !b.room.enqueue(question{from: b.Role, text: text}) {
			_ = b.Client.Send(models.ErrorFrame(b.SessionID, b.Role, "busy", "too many pending questions"))
			metrics.RelayFrames.WithLabelValues(string(frame.Type), "rejected").Inc()
			return nil
		}
		metrics.RelayFrames.WithLabelValues(string(frame.Type), "queued").Inc()
		return nil
	default:
		// the sender's binding is authoritative, not the frame's claims
		frame.SessionID = b.SessionID
		frame.Role = b.Role
		m.deliver(b.room, b.Role.Peer(), frame)
		return nil
	}
}

// Disconnect unbinds b if it is still the current binding for its role and
// tells the peer. The session stays open for a later rebind.
func (m *Manager) Disconnect(b *Binding) {
	peer, removed := b.room.unbind(b.Role, b.Client)
	if !removed {
		return
	}
	metrics.RelayConnections.Dec()
	if peer != nil {
		_ = peer.Send(models.PresenceFrame(b.SessionID, b.Role, models.PresenceDisconnectedFor(b.Role)))
	}
	m.logger.Info("binding disconnected",
		zap.String("session_id", b.SessionID),
		zap.String("role", string(b.Role)))
}

// CloseSession cancels pending answers of the session, tells both sides the
// session is over and closes their connections.
func (m *Manager) CloseSession(sessionID string) {
	m.mu.Lock()
	room, ok := m.rooms[sessionID]
	delete(m.rooms, sessionID)
	m.mu.Unlock()
	if !ok {
		return
	}

	clients := room.close()
	for _, c := range clients {
		_ = c.Send(models.PresenceFrame(sessionID, "", models.PresenceSessionClosed))
		c.Close(models.PresenceSessionClosed)
		metrics.RelayConnections.Dec()
	}
}

// Bound reports which roles currently hold a binding in the session.
func (m *Manager) Bound(sessionID string) (interviewer, candidate bool) {
	m.mu.Lock()
	room, ok := m.rooms[sessionID]
	m.mu.Unlock()
	if !ok {
		return false, false
	}
	return room.bound()
}

// Shutdown closes every room and waits for their workers to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.CloseSession(id)
	}
	m.workers.Wait()
}

func (m *Manager) room(session models.Session) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[session.ID]; ok {
		return room
	}
	room := newRoom(session.ID, session.OwnerName, m.queueSize)
	m.rooms[session.ID] = room
	m.workers.Add(1)
	go m.work(room)
	return room
}

// work answers the room's questions one at a time until the room closes.
func (m *Manager) work(room *Room) {
	defer m.workers.Done()
	for {
		select {
		case <-room.ctx.Done():
			return
		case q := <-room.questions:
			m.answer(room, q)
		}
	}
}

func (m *Manager) answer(room *Room, q question) {
	answer, err := m.answerer.Answer(room.ctx, room.ID, room.UserID, q.text)
	if err != nil {
		if room.ctx.Err() != nil {
			return
		}
		if asker := room.client(q.from); asker != nil {
			_ = asker.Send(models.ErrorFrame(room.ID, q.from, models.ErrorCode(err), "could not answer question"))
		}
		m.logger.Warn("answer failed", zap.String("session_id", room.ID), zap.Error(err))
		return
	}
	// the peer is resolved now, so a client that rebound meanwhile gets it
	m.deliver(room, q.from.Peer(), models.NewFrame(models.FrameAnswer, room.ID, q.from, answer))
}

func (m *Manager) deliver(room *Room, to models.Role, frame models.Frame) {
	peer := room.client(to)
	if peer == nil {
		metrics.RelayFrames.WithLabelValues(string(frame.Type), "dropped").Inc()
		return
	}
	if err := peer.Send(frame); err != nil {
		metrics.RelayFrames.WithLabelValues(string(frame.Type), "failed").Inc()
		m.logger.Debug("send failed", zap.String("session_id", room.ID), zap.Error(err))
		return
	}
	metrics.RelayFrames.WithLabelValues(string(frame.Type), "delivered").Inc()
}

func (m *Manager) reject(b *Binding, err error) {
	code := models.ErrorCode(err)
	if !errors.Is(err, models.ErrProtocol) {
		code = models.ErrProtocol.Error()
	}
	m.logger.Info("rejected frame",
		zap.String("session_id", b.SessionID),
		zap.String("role", string(b.Role)),
		zap.Error(err))
	_ = b.Client.Send(models.ErrorFrame(b.SessionID, b.Role, code, err.Error()))
	metrics.RelayFrames.WithLabelValues("invalid", "rejected").Inc()
}
