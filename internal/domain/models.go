package domain

import "time"

// SessionStatus tracks the lifecycle of a match session.
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"
	SessionOngoing   SessionStatus = "ongoing"
	SessionFinished  SessionStatus = "finished"
	SessionAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether no further transitions are allowed.
func (s SessionStatus) Terminal() bool {
	return s == SessionFinished || s == SessionAbandoned
}

// SessionResult is set only on finished sessions.
type SessionResult string

const (
	ResultNone SessionResult = ""
	ResultWin  SessionResult = "win"
	ResultDraw SessionResult = "draw"
)

// PlayerStatus tracks a participant within a session.
type PlayerStatus string

const (
	PlayerJoined       PlayerStatus = "joined"
	PlayerPlaying      PlayerStatus = "playing"
	PlayerFinished     PlayerStatus = "finished"
	PlayerDisconnected PlayerStatus = "disconnected"
)

// Answer is one recorded submission. Immutable once appended.
type Answer struct {
	QuestionID     string    `json:"questionId"`
	QuestionIndex  int       `json:"questionIndex"`
	SelectedOption int       `json:"selectedOption"`
	IsCorrect      bool      `json:"isCorrect"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// Player is a participant embedded in a Session.
// Answered is the authoritative per-index submission set; the counters are
// derived and kept in sync by the coordinator.
type Player struct {
	UserID            string       `json:"userId"`
	Status            PlayerStatus `json:"status"`
	Score             float64      `json:"score"`
	Answers           []Answer     `json:"answers"`
	Answered          map[int]bool `json:"answered"`
	CorrectAnswers    int          `json:"correctAnswers"`
	WrongAnswers      int          `json:"wrongAnswers"`
	QuestionsAnswered int          `json:"questionsAnswered"`
	RatingBefore      int          `json:"ratingBefore"`
	RatingAfter       int          `json:"ratingAfter"`
	RatingChange      int          `json:"ratingChange"`
	Rank              int          `json:"rank"`
}

// HasAnswered reports whether the player already submitted for an index.
func (p *Player) HasAnswered(questionIndex int) bool {
	return p.Answered[questionIndex]
}

// MaxPlayers is the hard capacity of a battle session.
const MaxPlayers = 2

// Session is one two-player timed quiz match. The persisted record is the
// single source of truth; in-process caches are never authoritative.
type Session struct {
	ID               string        `json:"id"`
	Players          []Player      `json:"players"`
	QuestionIDs      []string      `json:"questionIds"`
	Status           SessionStatus `json:"status"`
	StartTime        *time.Time    `json:"startTime,omitempty"`
	EndTime          *time.Time    `json:"endTime,omitempty"`
	TimeLimitSeconds int           `json:"timeLimitSeconds"`
	TotalQuestions   int           `json:"totalQuestions"`
	Result           SessionResult `json:"result,omitempty"`
	WinnerID         string        `json:"winnerId,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// PlayerByUser returns the embedded player for a user, or nil.
func (s *Session) PlayerByUser(userID string) *Player {
	for i := range s.Players {
		if s.Players[i].UserID == userID {
			return &s.Players[i]
		}
	}
	return nil
}

// ActivePlayers counts participants that have not disconnected.
func (s *Session) ActivePlayers() int {
	n := 0
	for i := range s.Players {
		if s.Players[i].Status != PlayerDisconnected {
			n++
		}
	}
	return n
}

// Option is a candidate answer for a question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// MinOptions is the smallest option list a usable question may carry.
const MinOptions = 4

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Topic   string   `json:"topic,omitempty"`
	Options []Option `json:"options"`
}

// Usable reports whether the question meets the minimum shape: a non-empty
// prompt and at least MinOptions options.
func (q Question) Usable() bool {
	return q.Prompt != "" && len(q.Options) >= MinOptions
}

// CorrectOption returns the index of the correct option, or -1.
func (q Question) CorrectOption() int {
	for i, opt := range q.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

// MatchRecord is one entry in a user's match history, written at
// finalization from that user's perspective.
type MatchRecord struct {
	SessionID      string    `json:"sessionId"`
	OpponentID     string    `json:"opponentId"`
	Result         string    `json:"result"` // win, loss, draw
	RatingChange   int       `json:"ratingChange"`
	Score          float64   `json:"score"`
	CorrectAnswers int       `json:"correctAnswers"`
	WrongAnswers   int       `json:"wrongAnswers"`
	TotalQuestions int       `json:"totalQuestions"`
	PlayedAt       time.Time `json:"playedAt"`
}

// UserProfile is the externally owned user record; this service reads and
// updates only the rating and match-history fields.
type UserProfile struct {
	ID        string        `json:"id"`
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatarUrl,omitempty"`
	Rating    int           `json:"rating"`
	Matches   []MatchRecord `json:"matches,omitempty"`
}
