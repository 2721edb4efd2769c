package app

import "quiz-battle-service/internal/domain"

// Event is a tagged room-scoped message fanned out by the Gateway.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Outbound event types.
const (
	EventSessionState       = "session-state"
	EventSessionStart       = "session-started"
	EventStateUpdate        = "state-update"
	EventNextQuestion       = "next-question"
	EventSessionEnded       = "session-ended"
	EventPlayerLeft         = "player-left"
	EventPlayerDisconnected = "player-disconnected"
	EventError              = "error"
	EventAnswerResult       = "answer-result"
)

// Gateway fans session events out to every member of a session's room.
// Delivery is fire-and-forget: no acknowledgement, no retry.
type Gateway interface {
	Broadcast(sessionID string, event Event)
}

// NopGateway discards all events; useful for tests and offline tooling.
type NopGateway struct{}

func (NopGateway) Broadcast(string, Event) {}

// SessionStatePayload carries the full session, with materialized questions
// once they are cached.
type SessionStatePayload struct {
	Session   *domain.Session   `json:"session"`
	Questions []domain.Question `json:"questions,omitempty"`
}

// PlayerAggregate is the per-player slice of a state update.
type PlayerAggregate struct {
	UserID            string              `json:"userId"`
	Status            domain.PlayerStatus `json:"status"`
	Score             float64             `json:"score"`
	CorrectAnswers    int                 `json:"correctAnswers"`
	WrongAnswers      int                 `json:"wrongAnswers"`
	QuestionsAnswered int                 `json:"questionsAnswered"`
}

// StateUpdatePayload is broadcast after every recorded submission.
type StateUpdatePayload struct {
	SessionID     string            `json:"sessionId"`
	UserID        string            `json:"userId"`
	QuestionIndex int               `json:"questionIndex"`
	IsCorrect     bool              `json:"isCorrect"`
	CorrectOption int               `json:"correctOption"`
	Players       []PlayerAggregate `json:"players"`
}

// NextQuestionPayload advances the shared question pointer.
type NextQuestionPayload struct {
	QuestionIndex int             `json:"questionIndex"`
	Question      domain.Question `json:"question"`
}

// PlayerResult is one player's final line in the session-ended event.
type PlayerResult struct {
	UserID            string  `json:"userId"`
	Username          string  `json:"username"`
	AvatarURL         string  `json:"avatarUrl,omitempty"`
	Score             float64 `json:"score"`
	Rank              int     `json:"rank"`
	OldRating         int     `json:"oldRating"`
	NewRating         int     `json:"newRating"`
	RatingChange      int     `json:"ratingChange"`
	CorrectAnswers    int     `json:"correctAnswers"`
	WrongAnswers      int     `json:"wrongAnswers"`
	QuestionsAnswered int     `json:"questionsAnswered"`
	Result            string  `json:"result"` // win, loss, draw
}

// SessionEndedPayload is the terminal broadcast with ratings applied.
type SessionEndedPayload struct {
	SessionID       string               `json:"sessionId"`
	TotalQuestions  int                  `json:"totalQuestions"`
	DurationSeconds int                  `json:"durationSeconds"`
	Result          domain.SessionResult `json:"result"`
	WinnerID        string               `json:"winnerId,omitempty"`
	Players         []PlayerResult       `json:"players"`
}

// PlayerLeftPayload notifies the room about a departure.
type PlayerLeftPayload struct {
	SessionID        string               `json:"sessionId"`
	UserID           string               `json:"userId"`
	RemainingPlayers int                  `json:"remainingPlayers"`
	Status           domain.SessionStatus `json:"status"`
}

// SubmitResult is returned to the submitting caller only (the legacy
// answer-result event); room members get the StateUpdatePayload instead.
type SubmitResult struct {
	QuestionIndex int     `json:"questionIndex"`
	IsCorrect     bool    `json:"isCorrect"`
	CorrectOption int     `json:"correctOption"`
	Score         float64 `json:"score"`
}
