// Package broadcast pushes availability and hold changes to websocket
// watchers. Each session has a room with its own monotonic sequence, so a
// watcher can detect missed or reordered updates per session.
package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"coursebook/pkg/config"
	"coursebook/pkg/events"
	"coursebook/pkg/model"
)

const (
	FrameUpdate          = "availability.update"
	FrameUrgent          = "availability.urgent"
	FrameFull            = "availability.full"
	FrameSubscribed      = "availability.subscribed"
	FrameError           = "availability.error"
	FrameIntentActive    = "intent.active"
	FrameIntentCancelled = "intent.cancelled"
)

// peerSendBuffer bounds the per-subscriber frame queue. A subscriber that
// cannot drain its queue loses frames instead of stalling the publisher;
// the sequence gap tells the client to resnapshot.
const peerSendBuffer = 32

type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type updatePayload struct {
	SessionID    string              `json:"session_id"`
	SequenceID   int64               `json:"sequence_id"`
	Event        string              `json:"event"`
	Availability *model.Availability `json:"availability"`
	OccurredAt   string              `json:"occurred_at"`
}

type intentFramePayload struct {
	SessionID  string `json:"session_id"`
	SequenceID int64  `json:"sequence_id"`
	Event      string `json:"event"`
	IntentID   string `json:"intent_id"`
	HolderKey  string `json:"holder_key,omitempty"`
	Spots      int    `json:"spots"`
	ExpiresAt  string `json:"expires_at,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// peer owns one connection's outbound side: a bounded queue drained by a
// writer goroutine, so publishing never blocks on a slow socket.
type peer struct {
	mu      sync.Mutex
	closed  bool
	send    chan Frame
	done    chan struct{}
	encoder *json.Encoder
}

func newPeer(encoder *json.Encoder) *peer {
	p := &peer{
		send:    make(chan Frame, peerSendBuffer),
		done:    make(chan struct{}),
		encoder: encoder,
	}
	go p.writeLoop()
	return p
}

func (p *peer) writeLoop() {
	defer close(p.done)
	for frame := range p.send {
		if err := p.encoder.Encode(frame); err != nil {
			// The read loop notices the dead connection and closes us.
			return
		}
	}
}

// enqueue offers a frame without blocking. Reports false when the frame was
// dropped because the subscriber is not keeping up.
func (p *peer) enqueue(frame Frame) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return true
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

// close stops the writer after draining queued frames.
func (p *peer) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.send)
	p.mu.Unlock()
	<-p.done
}

type sessionRoom struct {
	mu           sync.Mutex
	sessionID    string
	nextSequence int64
	subscribers  map[*peer]struct{}
}

func newSessionRoom(sessionID string) *sessionRoom {
	return &sessionRoom{
		sessionID:   sessionID,
		subscribers: make(map[*peer]struct{}),
	}
}

func (r *sessionRoom) join(p *peer) int64 {
	r.mu.Lock()
	r.subscribers[p] = struct{}{}
	latest := r.nextSequence
	r.mu.Unlock()
	return latest
}

func (r *sessionRoom) leave(p *peer) bool {
	r.mu.Lock()
	delete(r.subscribers, p)
	empty := len(r.subscribers) == 0
	r.mu.Unlock()
	return empty
}

// next assigns the sequence number for one broadcast and snapshots the
// subscriber set under the same lock, so sequence order matches delivery
// order per room.
func (r *sessionRoom) next() (int64, []*peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSequence++
	subscribers := make([]*peer, 0, len(r.subscribers))
	for subscriber := range r.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	return r.nextSequence, subscribers
}

// Hub fans domain events out to per-session rooms. It implements
// events.Publisher so it can sit directly on the service event path.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*sessionRoom
	cfg   *config.Config
}

func NewHub(cfg *config.Config) *Hub {
	return &Hub{
		rooms: make(map[string]*sessionRoom),
		cfg:   cfg,
	}
}

func (h *Hub) room(sessionID string) *sessionRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if ok {
		return room
	}

	room = newSessionRoom(sessionID)
	h.rooms[sessionID] = room
	return room
}

func (h *Hub) dropIfEmpty(sessionID string, room *sessionRoom) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room.mu.Lock()
	empty := len(room.subscribers) == 0
	room.mu.Unlock()
	if empty {
		delete(h.rooms, sessionID)
	}
}

// Publish broadcasts one committed event to the session's watchers. Hold
// lifecycle events get their own frames; any event carrying an availability
// snapshot also gets an availability frame. A slow or dead subscriber only
// loses its own frames.
func (h *Hub) Publish(_ context.Context, evt events.Event) {
	switch evt.Type {
	case events.TypeIntentCreated:
		h.broadcastIntent(FrameIntentActive, evt)
	case events.TypeIntentCancelled, events.TypeIntentExpired:
		h.broadcastIntent(FrameIntentCancelled, evt)
	}

	if evt.Availability == nil {
		return
	}

	room := h.room(evt.SessionID)
	sequence, subscribers := room.next()
	if len(subscribers) == 0 {
		return
	}

	frame := Frame{
		Type: h.frameType(evt.Availability),
		Payload: mustJSON(updatePayload{
			SessionID:    evt.SessionID,
			SequenceID:   sequence,
			Event:        string(evt.Type),
			Availability: evt.Availability,
			OccurredAt:   evt.OccurredAt.Format(time.RFC3339),
		}),
	}
	h.deliver(evt.SessionID, frame, subscribers)
}

func (h *Hub) broadcastIntent(frameType string, evt events.Event) {
	room := h.room(evt.SessionID)
	sequence, subscribers := room.next()
	if len(subscribers) == 0 {
		return
	}

	payload := intentFramePayload{
		SessionID:  evt.SessionID,
		SequenceID: sequence,
		Event:      string(evt.Type),
		IntentID:   evt.IntentID,
		HolderKey:  evt.HolderKey,
		Spots:      evt.Spots,
		OccurredAt: evt.OccurredAt.Format(time.RFC3339),
	}
	if evt.ExpiresAt != nil {
		payload.ExpiresAt = evt.ExpiresAt.Format(time.RFC3339)
	}

	h.deliver(evt.SessionID, Frame{Type: frameType, Payload: mustJSON(payload)}, subscribers)
}

func (h *Hub) deliver(sessionID string, frame Frame, subscribers []*peer) {
	for _, subscriber := range subscribers {
		if !subscriber.enqueue(frame) {
			h.cfg.Log.Debug("Subscriber lagging, frame dropped", "session_id", sessionID, "frame", frame.Type)
		}
	}
}

func (h *Hub) frameType(avail *model.Availability) string {
	switch {
	case avail.Remaining <= 0:
		return FrameFull
	case avail.Remaining <= h.cfg.NearlyFullThreshold:
		return FrameUrgent
	default:
		return FrameUpdate
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
