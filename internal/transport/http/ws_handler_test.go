package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
	"quiz-battle-service/internal/question"
)

func TestWebSocketMatchFlow(t *testing.T) {
	env := newWSEnv(t)
	defer env.server.Close()

	s, err := env.coordinator.CreateSession(context.Background(), app.CreateSessionRequest{TimeLimitSeconds: 300})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	conn1 := env.dial(t, s.ID, "u1")
	defer conn1.Close()
	waitForEvent(t, conn1, app.EventSessionState)

	conn2 := env.dial(t, s.ID, "u2")
	defer conn2.Close()

	// Both room members see the start event with materialized questions.
	start := waitForEvent(t, conn1, app.EventSessionStart)
	waitForEvent(t, conn2, app.EventSessionStart)

	var startPayload struct {
		Session   json.RawMessage   `json:"session"`
		Questions []domain.Question `json:"questions"`
	}
	mustUnmarshal(t, start.Payload, &startPayload)
	if len(startPayload.Questions) != 3 {
		t.Fatalf("expected 3 questions in start event, got %d", len(startPayload.Questions))
	}

	// u1 answers correctly: the actor gets answer-result, the room gets state-update.
	writeMessage(t, conn1, "submit-answer", map[string]any{"questionIndex": 0, "selectedOption": 1})

	result := waitForEvent(t, conn1, app.EventAnswerResult)
	var res app.SubmitResult
	mustUnmarshal(t, result.Payload, &res)
	if !res.IsCorrect || res.Score != 1 {
		t.Fatalf("expected correct answer scoring 1, got %+v", res)
	}

	update := waitForEvent(t, conn2, app.EventStateUpdate)
	var upd app.StateUpdatePayload
	mustUnmarshal(t, update.Payload, &upd)
	if upd.UserID != "u1" || !upd.IsCorrect || upd.CorrectOption != 1 {
		t.Fatalf("unexpected state update: %+v", upd)
	}

	// Both answered question 0: next-question reaches the room.
	writeMessage(t, conn2, "submit-answer", map[string]any{"questionIndex": 0, "selectedOption": 0})
	next := waitForEvent(t, conn1, app.EventNextQuestion)
	var nq app.NextQuestionPayload
	mustUnmarshal(t, next.Payload, &nq)
	if nq.QuestionIndex != 1 {
		t.Fatalf("expected next index 1, got %d", nq.QuestionIndex)
	}
}

func TestWebSocketRejectsMalformedPayload(t *testing.T) {
	env := newWSEnv(t)
	defer env.server.Close()

	s, err := env.coordinator.CreateSession(context.Background(), app.CreateSessionRequest{TimeLimitSeconds: 300})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	conn := env.dial(t, s.ID, "u1")
	defer conn.Close()
	waitForEvent(t, conn, app.EventSessionState)

	// Missing selectedOption must fail validation at the boundary.
	writeMessage(t, conn, "submit-answer", map[string]any{"questionIndex": 0})
	waitForEvent(t, conn, app.EventError)

	writeMessage(t, conn, "submit-answer", map[string]any{"questionIndex": -1, "selectedOption": 0})
	waitForEvent(t, conn, app.EventError)
}

func TestCreateSessionEndpoint(t *testing.T) {
	env := newWSEnv(t)
	defer env.server.Close()

	resp, err := http.Post(env.server.URL+"/sessions", "application/json",
		jsonBody(t, map[string]any{"questionCount": 2, "timeLimitSeconds": 120}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var s domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if s.ID == "" || s.Status != domain.SessionWaiting || s.TotalQuestions != 2 {
		t.Fatalf("unexpected created session: %+v", s)
	}
}

func TestSendToWriterReturnsAfterWriterExit(t *testing.T) {
	send := make(chan app.Event, 1)
	writerDone := make(chan struct{})
	send <- app.Event{Type: "fill"} // buffer full, nobody draining
	close(writerDone)

	done := make(chan struct{})
	go func() {
		sendToWriter(send, writerDone, app.Event{Type: "dropped"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("send must not block once the writer is gone")
	}
}

type wsEnv struct {
	coordinator *app.Coordinator
	server      *httptest.Server
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	var pool []domain.Question
	for i := 0; i < 3; i++ {
		pool = append(pool, domain.Question{
			ID:     fmt.Sprintf("q%d", i),
			Prompt: fmt.Sprintf("Question %d", i),
			Topic:  "go",
			Options: []domain.Option{
				{Text: "wrong"},
				{Text: "right", Correct: true},
				{Text: "wrong"},
				{Text: "wrong"},
			},
		})
	}
	users := memory.NewUserRepository()
	sessions := memory.NewSessionRepository().WithUsers(users)
	hub := NewHub()
	coordinator := app.NewCoordinator(
		sessions,
		users,
		question.NewProvider(memory.NewQuestionStore(pool)),
		app.NewRegistry(),
		hub,
		app.Config{AdvanceDelay: 10 * time.Millisecond, QuestionsPerMatch: 3, Topic: "go"},
	)

	wsHandler := NewWSHandler(coordinator, hub)
	sessionHandler := NewSessionHandler(coordinator)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/sessions", sessionHandler.CreateSession)

	return &wsEnv{coordinator: coordinator, server: httptest.NewServer(mux)}
}

func (e *wsEnv) dial(t *testing.T, sessionID, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + e.server.URL[len("http"):] + "/ws?sessionId=" + sessionID + "&userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", userID, err)
	}
	return conn
}

// waitForEvent reads messages until one of the wanted type arrives,
// skipping interleaved broadcasts of other types.
func waitForEvent(t *testing.T, conn *websocket.Conn, eventType string) rawEvent {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		var e rawEvent
		if err := conn.ReadJSON(&e); err != nil {
			t.Fatalf("read while waiting for %s: %v", eventType, err)
		}
		if e.Type == eventType {
			return e
		}
	}
	t.Fatalf("timed out waiting for %s", eventType)
	return rawEvent{}
}

type rawEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func writeMessage(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func mustUnmarshal(t *testing.T, raw json.RawMessage, v any) {
	t.Helper()
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewReader(raw)
}
