package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// SessionHandler serves the REST surface for creating match sessions;
// everything after creation happens over the WebSocket.
type SessionHandler struct {
	coordinator *app.Coordinator
}

func NewSessionHandler(coordinator *app.Coordinator) *SessionHandler {
	return &SessionHandler{coordinator: coordinator}
}

type createSessionRequest struct {
	QuestionIDs      []string `json:"questionIds"`
	QuestionCount    int      `json:"questionCount"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.QuestionCount < 0 || req.TimeLimitSeconds < 0 {
		http.Error(w, "counts must be non-negative", http.StatusBadRequest)
		return
	}

	s, err := h.coordinator.CreateSession(r.Context(), app.CreateSessionRequest{
		QuestionIDs:      req.QuestionIDs,
		QuestionCount:    req.QuestionCount,
		TimeLimitSeconds: req.TimeLimitSeconds,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoQuestions) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		log.Printf("http: create session: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(s)
}
