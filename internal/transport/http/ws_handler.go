// Package http exposes the match coordinator over WebSocket plus a small
// REST surface for session creation.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// WSHandler upgrades connections and wires them into the coordinator.
type WSHandler struct {
	coordinator *app.Coordinator
	hub         *Hub
	upgrader    websocket.Upgrader
}

func NewWSHandler(coordinator *app.Coordinator, hub *Hub) *WSHandler {
	return &WSHandler{
		coordinator: coordinator,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Inbound messages are tagged variants validated here, before anything
// reaches the coordinator.
type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitAnswerPayload struct {
	QuestionIndex  *int `json:"questionIndex"`
	SelectedOption *int `json:"selectedOption"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type disconnectPayload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

// ServeWS handles one player's connection for the lifetime of their
// participation: join on connect, inbound events until close, leave on
// disconnect.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	userID := r.URL.Query().Get("userId")
	if sessionID == "" || userID == "" {
		http.Error(w, "missing sessionId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Subscribe before joining so the join's own broadcast is not missed.
	updates, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	if _, err := h.coordinator.Join(r.Context(), sessionID, userID); err != nil {
		_ = conn.WriteJSON(app.Event{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
		return
	}

	send := make(chan app.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- update:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	left := h.readLoop(r, conn, send, writerDone, sessionID, userID)

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone

	if !left {
		// Implicit disconnect: tell the room, then treat it as a leave so an
		// ongoing match forfeits to the remaining player.
		h.hub.Broadcast(sessionID, app.Event{Type: app.EventPlayerDisconnected, Payload: disconnectPayload{
			SessionID: sessionID,
			UserID:    userID,
		}})
		// The request context may already be canceled once the socket drops.
		if err := h.coordinator.Leave(context.Background(), sessionID, userID); err != nil && !errors.Is(err, domain.ErrPlayerNotFound) {
			log.Printf("ws: leave on disconnect %s/%s: %v", sessionID, userID, err)
		}
	}
}

// readLoop processes inbound messages until the connection drops or the
// client leaves explicitly. Returns true if the client left on its own.
func (h *WSHandler) readLoop(r *http.Request, conn *websocket.Conn, send chan app.Event, writerDone <-chan struct{}, sessionID, userID string) bool {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return false
		}

		switch inbound.Type {
		case "submit-answer":
			var payload submitAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil ||
				payload.QuestionIndex == nil || payload.SelectedOption == nil ||
				*payload.QuestionIndex < 0 || *payload.SelectedOption < 0 {
				sendToWriter(send, writerDone, app.Event{Type: app.EventError, Payload: errorPayload{Message: "invalid submit-answer payload"}})
				continue
			}
			result, err := h.coordinator.SubmitAnswer(r.Context(), sessionID, userID, *payload.QuestionIndex, *payload.SelectedOption)
			if err != nil {
				sendToWriter(send, writerDone, app.Event{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
				continue
			}
			if result != nil {
				sendToWriter(send, writerDone, app.Event{Type: app.EventAnswerResult, Payload: result})
			}

		case "leave-session":
			if err := h.coordinator.Leave(r.Context(), sessionID, userID); err != nil {
				sendToWriter(send, writerDone, app.Event{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
				continue
			}
			return true

		case "session-timeout":
			if err := h.coordinator.HandleTimeout(r.Context(), sessionID); err != nil {
				sendToWriter(send, writerDone, app.Event{Type: app.EventError, Payload: errorPayload{Message: err.Error()}})
			}

		default:
			sendToWriter(send, writerDone, app.Event{Type: app.EventError, Payload: errorPayload{Message: "unsupported message type"}})
		}
	}
}

// sendToWriter queues an event for the writer goroutine, giving up if the
// writer already exited on a dead connection so the read loop never blocks
// on a full buffer.
func sendToWriter(send chan<- app.Event, writerDone <-chan struct{}, e app.Event) {
	select {
	case send <- e:
	case <-writerDone:
	}
}
