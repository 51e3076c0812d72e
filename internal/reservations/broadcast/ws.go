package broadcast

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"
)

const maxDecodeErrorsPerConn = 5

type subscribePayload struct {
	SessionIDs []string `json:"session_ids"`
}

type subscribedPayload struct {
	SessionID        string `json:"session_id"`
	LatestSequenceID int64  `json:"latest_sequence_id"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsWatcher tracks which rooms one connection is subscribed to.
type wsWatcher struct {
	peer  *peer
	rooms map[string]*sessionRoom
}

// Handler returns the websocket endpoint for availability watchers.
// Watchers send availability.subscribe and availability.unsubscribe frames
// and receive availability.update, urgent and full frames plus hold
// lifecycle frames per subscribed session.
func (h *Hub) Handler() http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		h.handleConn(conn)
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
}

func (h *Hub) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	decoder := json.NewDecoder(conn)
	watcher := &wsWatcher{
		peer:  newPeer(json.NewEncoder(conn)),
		rooms: make(map[string]*sessionRoom),
	}
	defer watcher.peer.close()
	defer h.leaveAll(watcher)

	decodeErrors := 0
	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			decodeErrors++
			writeError(watcher.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid frame payload")
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		switch frame.Type {
		case "availability.subscribe":
			h.handleSubscribe(watcher, frame)
		case "availability.unsubscribe":
			h.handleUnsubscribe(watcher, frame)
		default:
			writeError(watcher.peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func (h *Hub) handleSubscribe(watcher *wsWatcher, frame Frame) {
	var payload subscribePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		writeError(watcher.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid subscribe payload")
		return
	}
	if len(payload.SessionIDs) == 0 {
		writeError(watcher.peer, frame.RequestID, "INVALID_ARGUMENT", "session_ids is required")
		return
	}

	for _, sessionID := range payload.SessionIDs {
		sessionID = strings.TrimSpace(sessionID)
		if sessionID == "" {
			continue
		}
		if _, ok := watcher.rooms[sessionID]; ok {
			continue
		}

		room := h.room(sessionID)
		latest := room.join(watcher.peer)
		watcher.rooms[sessionID] = room

		watcher.peer.enqueue(Frame{
			Type:      FrameSubscribed,
			RequestID: frame.RequestID,
			Payload: mustJSON(subscribedPayload{
				SessionID:        sessionID,
				LatestSequenceID: latest,
			}),
		})
	}
}

func (h *Hub) handleUnsubscribe(watcher *wsWatcher, frame Frame) {
	var payload subscribePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		writeError(watcher.peer, frame.RequestID, "INVALID_ARGUMENT", "invalid unsubscribe payload")
		return
	}

	for _, sessionID := range payload.SessionIDs {
		room, ok := watcher.rooms[sessionID]
		if !ok {
			continue
		}
		delete(watcher.rooms, sessionID)
		if room.leave(watcher.peer) {
			h.dropIfEmpty(sessionID, room)
		}
	}
}

func (h *Hub) leaveAll(watcher *wsWatcher) {
	for sessionID, room := range watcher.rooms {
		if room.leave(watcher.peer) {
			h.dropIfEmpty(sessionID, room)
		}
	}
}

func writeError(p *peer, requestID, code, message string) {
	p.enqueue(Frame{
		Type:      FrameError,
		RequestID: requestID,
		Payload: mustJSON(errorPayload{
			Code:    code,
			Message: message,
		}),
	})
}
