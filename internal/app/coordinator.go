// Package app contains the match coordination core: the session state
// machine, the live-session registry, and the event payloads broadcast to
// session rooms.
package app

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/question"
	"quiz-battle-service/internal/rating"
)

// SessionRepository is the durable store for session documents.
// Full-document reads and writes; no partial patch semantics.
type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Session, error)
	Create(ctx context.Context, s *domain.Session) error
	Update(ctx context.Context, s *domain.Session) error
	// Finalize persists the finished session together with the updated user
	// profiles as one logical transaction.
	Finalize(ctx context.Context, s *domain.Session, users []*domain.UserProfile) error
}

// UserRepository supplies and persists rating and match-history fields.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.UserProfile, error)
	Save(ctx context.Context, u *domain.UserProfile) error
}

// Presence marks live matches in a shared store so operators can see which
// sessions are in flight. Best-effort; failures are ignored.
type Presence interface {
	MarkActive(ctx context.Context, sessionID string, ttl time.Duration)
	Clear(ctx context.Context, sessionID string)
}

// Config tunes coordinator behavior. Zero values fall back to defaults.
type Config struct {
	// TimeLimit is the default whole-session countdown for new sessions.
	TimeLimit time.Duration
	// AdvanceDelay is how long results stay on screen before the next
	// question (or the final results) are pushed.
	AdvanceDelay time.Duration
	// QuestionsPerMatch is the default size of a randomly generated set.
	QuestionsPerMatch int
	// Topic is the pool random questions are drawn from.
	Topic string
}

const (
	defaultTimeLimit    = 5 * time.Minute
	defaultAdvanceDelay = 2 * time.Second
	defaultPerMatch     = 5
)

func (c Config) withDefaults() Config {
	if c.TimeLimit <= 0 {
		c.TimeLimit = defaultTimeLimit
	}
	if c.AdvanceDelay <= 0 {
		c.AdvanceDelay = defaultAdvanceDelay
	}
	if c.QuestionsPerMatch <= 0 {
		c.QuestionsPerMatch = defaultPerMatch
	}
	return c
}

// Coordinator drives two-player match sessions through
// waiting → ongoing → {finished, abandoned}. All operations on one session
// are serialized by the registry's per-session lock, so the persisted
// re-read before every decision is a safety net rather than load-bearing.
type Coordinator struct {
	sessions  SessionRepository
	users     UserRepository
	questions *question.Provider
	registry  *Registry
	gateway   Gateway
	presence  Presence
	cfg       Config
	clock     func() time.Time
}

func NewCoordinator(sessions SessionRepository, users UserRepository, provider *question.Provider, registry *Registry, gateway Gateway, cfg Config) *Coordinator {
	if gateway == nil {
		gateway = NopGateway{}
	}
	return &Coordinator{
		sessions:  sessions,
		users:     users,
		questions: provider,
		registry:  registry,
		gateway:   gateway,
		cfg:       cfg.withDefaults(),
		clock:     time.Now,
	}
}

// WithPresence attaches a best-effort live-match marker store.
func (c *Coordinator) WithPresence(p Presence) *Coordinator {
	c.presence = p
	return c
}

// WithClock is for deterministic timestamps in tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.clock = now
	return c
}

// CreateSessionRequest describes a new match. An empty QuestionIDs list
// falls back to a random draw from the configured topic pool.
type CreateSessionRequest struct {
	QuestionIDs      []string
	QuestionCount    int
	TimeLimitSeconds int
}

// CreateSession persists a fresh waiting session with a validated question
// set. Explicit ids that resolve to nothing fall back to a random draw.
func (c *Coordinator) CreateSession(ctx context.Context, req CreateSessionRequest) (*domain.Session, error) {
	qs := c.questions.FetchQuestions(ctx, req.QuestionIDs)
	if len(qs) == 0 {
		count := req.QuestionCount
		if count <= 0 {
			count = c.cfg.QuestionsPerMatch
		}
		qs = c.questions.Random(ctx, c.cfg.Topic, count)
	}
	if len(qs) == 0 {
		return nil, domain.ErrNoQuestions
	}

	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}

	limit := req.TimeLimitSeconds
	if limit <= 0 {
		limit = int(c.cfg.TimeLimit / time.Second)
	}

	s := &domain.Session{
		ID:               uuid.NewString(),
		Status:           domain.SessionWaiting,
		QuestionIDs:      ids,
		TimeLimitSeconds: limit,
		TotalQuestions:   len(ids),
		CreatedAt:        c.clock(),
	}
	if err := c.sessions.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

// Join adds a player to a waiting session. The second join fetches and
// validates the question set, transitions the session to ongoing, arms the
// countdown, and broadcasts the start event. If no usable questions can be
// loaded the join fails and the session stays waiting.
func (c *Coordinator) Join(ctx context.Context, sessionID, userID string) (*domain.Session, error) {
	unlock := c.registry.Lock(sessionID)
	defer unlock()

	s, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if p := s.PlayerByUser(userID); p != nil {
		// Rejoin after reconnect: no state change, just resend the snapshot.
		qs, _ := c.registry.Questions(sessionID)
		c.gateway.Broadcast(sessionID, Event{Type: EventSessionState, Payload: SessionStatePayload{Session: s, Questions: qs}})
		return s, nil
	}
	if s.Status != domain.SessionWaiting {
		return nil, domain.ErrSessionNotJoinable
	}

	s.Players = append(s.Players, domain.Player{
		UserID:   userID,
		Status:   domain.PlayerJoined,
		Answered: make(map[int]bool),
	})

	if len(s.Players) < domain.MaxPlayers {
		if err := c.sessions.Update(ctx, s); err != nil {
			return nil, fmt.Errorf("persist join: %w", err)
		}
		c.gateway.Broadcast(sessionID, Event{Type: EventSessionState, Payload: SessionStatePayload{Session: s}})
		return s, nil
	}

	// Second player: load the question set before committing anything.
	qs := c.questions.FetchQuestions(ctx, s.QuestionIDs)
	if len(qs) == 0 {
		return nil, domain.ErrNoQuestions
	}

	now := c.clock()
	s.Status = domain.SessionOngoing
	s.StartTime = &now
	s.TotalQuestions = len(qs)
	s.QuestionIDs = questionIDs(qs)
	for i := range s.Players {
		s.Players[i].Status = domain.PlayerPlaying
	}
	if err := c.sessions.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("persist start: %w", err)
	}

	limit := time.Duration(s.TimeLimitSeconds) * time.Second
	timer := time.AfterFunc(limit, func() {
		c.finalizeIfOngoing(context.Background(), sessionID, "")
	})
	c.registry.Start(sessionID, qs, now, timer)
	if c.presence != nil {
		c.presence.MarkActive(ctx, sessionID, limit)
	}

	c.gateway.Broadcast(sessionID, Event{Type: EventSessionStart, Payload: SessionStatePayload{Session: s, Questions: qs}})
	return s, nil
}

// Leave removes a player. A waiting session that empties out is abandoned;
// leaving an ongoing session forfeits it to the remaining player.
func (c *Coordinator) Leave(ctx context.Context, sessionID, userID string) error {
	unlock := c.registry.Lock(sessionID)
	defer unlock()

	s, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if s.Status.Terminal() {
		return nil
	}
	p := s.PlayerByUser(userID)
	if p == nil {
		return domain.ErrPlayerNotFound
	}

	switch s.Status {
	case domain.SessionWaiting:
		players := s.Players[:0]
		for _, pl := range s.Players {
			if pl.UserID != userID {
				players = append(players, pl)
			}
		}
		s.Players = players
		if len(s.Players) == 0 {
			s.Status = domain.SessionAbandoned
		}
		if err := c.sessions.Update(ctx, s); err != nil {
			return fmt.Errorf("persist leave: %w", err)
		}
		// Evict only after the terminal status is durable, so a concurrent
		// join sees abandoned instead of resurrecting the session.
		if s.Status == domain.SessionAbandoned {
			c.registry.Evict(sessionID)
			if c.presence != nil {
				c.presence.Clear(ctx, sessionID)
			}
		}
		c.broadcastPlayerLeft(s, userID)
		return nil

	case domain.SessionOngoing:
		p.Status = domain.PlayerDisconnected
		if err := c.sessions.Update(ctx, s); err != nil {
			return fmt.Errorf("persist leave: %w", err)
		}
		c.broadcastPlayerLeft(s, userID)

		forfeitWinner := ""
		for i := range s.Players {
			if s.Players[i].Status != domain.PlayerDisconnected {
				forfeitWinner = s.Players[i].UserID
				break
			}
		}
		if forfeitWinner == "" {
			s.Status = domain.SessionAbandoned
			now := c.clock()
			s.EndTime = &now
			if err := c.sessions.Update(ctx, s); err != nil {
				return fmt.Errorf("persist abandon: %w", err)
			}
			c.registry.Evict(sessionID)
			if c.presence != nil {
				c.presence.Clear(ctx, sessionID)
			}
			return nil
		}
		return c.finalize(ctx, s, forfeitWinner)
	}
	return nil
}

func (c *Coordinator) broadcastPlayerLeft(s *domain.Session, userID string) {
	c.gateway.Broadcast(s.ID, Event{Type: EventPlayerLeft, Payload: PlayerLeftPayload{
		SessionID:        s.ID,
		UserID:           userID,
		RemainingPlayers: s.ActivePlayers(),
		Status:           s.Status,
	}})
}

// SubmitAnswer records one player's answer for a question index. A repeated
// submission for an already-answered index returns (nil, nil): a silent
// no-op, expected under client retries.
func (c *Coordinator) SubmitAnswer(ctx context.Context, sessionID, userID string, questionIndex, selectedOption int) (*SubmitResult, error) {
	unlock := c.registry.Lock(sessionID)
	defer unlock()

	s, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Status != domain.SessionOngoing {
		return nil, domain.ErrSessionNotActive
	}
	p := s.PlayerByUser(userID)
	if p == nil {
		return nil, domain.ErrPlayerNotFound
	}
	if questionIndex < 0 || questionIndex >= s.TotalQuestions {
		return nil, domain.ErrQuestionNotFound
	}
	if p.HasAnswered(questionIndex) {
		return nil, nil
	}

	qs, ok := c.registry.Questions(sessionID)
	if !ok {
		// Cache lost (e.g. process restart mid-match); rebuild from the
		// persisted question set.
		qs = c.questions.FetchQuestions(ctx, s.QuestionIDs)
		if len(qs) == 0 {
			return nil, domain.ErrQuestionNotFound
		}
		c.registry.CacheQuestions(sessionID, qs)
	}
	if questionIndex >= len(qs) {
		return nil, domain.ErrQuestionNotFound
	}
	q := qs[questionIndex]

	correct := selectedOption >= 0 && selectedOption < len(q.Options) && q.Options[selectedOption].Correct
	if correct {
		p.Score++
		p.CorrectAnswers++
	} else {
		p.Score -= 0.5
		p.WrongAnswers++
	}
	p.QuestionsAnswered++
	if p.Answered == nil {
		p.Answered = make(map[int]bool)
	}
	p.Answered[questionIndex] = true
	p.Answers = append(p.Answers, domain.Answer{
		QuestionID:     q.ID,
		QuestionIndex:  questionIndex,
		SelectedOption: selectedOption,
		IsCorrect:      correct,
		AnsweredAt:     c.clock(),
	})
	if p.QuestionsAnswered >= s.TotalQuestions {
		p.Status = domain.PlayerFinished
	}

	if err := c.sessions.Update(ctx, s); err != nil {
		return nil, fmt.Errorf("persist answer: %w", err)
	}

	c.gateway.Broadcast(sessionID, Event{Type: EventStateUpdate, Payload: StateUpdatePayload{
		SessionID:     sessionID,
		UserID:        userID,
		QuestionIndex: questionIndex,
		IsCorrect:     correct,
		CorrectOption: q.CorrectOption(),
		Players:       aggregates(s),
	}})

	result := &SubmitResult{
		QuestionIndex: questionIndex,
		IsCorrect:     correct,
		CorrectOption: q.CorrectOption(),
		Score:         p.Score,
	}

	if err := c.advance(ctx, s, questionIndex, qs); err != nil {
		return result, err
	}
	return result, nil
}

// advance applies the post-submission decision, in priority order: every
// player done → finalize now; both answered and more remain → delayed
// next-question from cache; both answered the last → delayed finalize;
// otherwise wait for the other player.
func (c *Coordinator) advance(ctx context.Context, s *domain.Session, questionIndex int, qs []domain.Question) error {
	allDone := true
	bothAnswered := true
	for i := range s.Players {
		if s.Players[i].QuestionsAnswered < s.TotalQuestions {
			allDone = false
		}
		if !s.Players[i].HasAnswered(questionIndex) {
			bothAnswered = false
		}
	}

	switch {
	case allDone:
		return c.finalize(ctx, s, "")
	case bothAnswered && questionIndex+1 < s.TotalQuestions:
		sessionID := s.ID
		next := questionIndex + 1
		nextQuestion := qs[next]
		time.AfterFunc(c.cfg.AdvanceDelay, func() {
			if !c.registry.Active(sessionID) {
				return
			}
			c.gateway.Broadcast(sessionID, Event{Type: EventNextQuestion, Payload: NextQuestionPayload{
				QuestionIndex: next,
				Question:      nextQuestion,
			}})
		})
	case bothAnswered:
		sessionID := s.ID
		time.AfterFunc(c.cfg.AdvanceDelay, func() {
			c.finalizeIfOngoing(context.Background(), sessionID, "")
		})
	}
	return nil
}

// HandleTimeout finalizes a session when the countdown fires or a client
// signals that its local timer elapsed. A no-op on non-ongoing sessions.
func (c *Coordinator) HandleTimeout(ctx context.Context, sessionID string) error {
	return c.finalizeIfOngoing(ctx, sessionID, "")
}

// finalizeIfOngoing takes the session lock, re-reads the persisted state,
// and finalizes only if the session is still ongoing. This is the gate that
// makes timer double-fires harmless.
func (c *Coordinator) finalizeIfOngoing(ctx context.Context, sessionID, forfeitWinner string) error {
	unlock := c.registry.Lock(sessionID)
	defer unlock()

	s, err := c.sessions.FindByID(ctx, sessionID)
	if err != nil {
		log.Printf("coordinator: finalize reload %s: %v", sessionID, err)
		return err
	}
	if s.Status != domain.SessionOngoing {
		return nil
	}
	return c.finalize(ctx, s, forfeitWinner)
}

// finalize runs under the session lock with a freshly loaded session.
// Best-effort: a failure is logged and surfaced but no rollback happens
// before the transactional store write.
func (c *Coordinator) finalize(ctx context.Context, s *domain.Session, forfeitWinner string) error {
	now := c.clock()
	s.Status = domain.SessionFinished
	s.EndTime = &now

	sort.SliceStable(s.Players, func(i, j int) bool {
		return s.Players[i].Score > s.Players[j].Score
	})
	if forfeitWinner != "" {
		for i := range s.Players {
			if s.Players[i].UserID == forfeitWinner && i != 0 {
				s.Players[0], s.Players[i] = s.Players[i], s.Players[0]
			}
		}
	}

	draw := forfeitWinner == "" &&
		len(s.Players) >= 2 && s.Players[0].Score == s.Players[1].Score
	if draw {
		s.Result = domain.ResultDraw
		s.WinnerID = ""
	} else if len(s.Players) > 0 {
		s.Result = domain.ResultWin
		s.WinnerID = s.Players[0].UserID
	}

	var profiles []*domain.UserProfile
	if len(s.Players) == domain.MaxPlayers {
		profiles = c.applyRatings(ctx, s, draw, now)
	} else if len(s.Players) == 1 {
		s.Players[0].Rank = 1
	}

	if err := c.sessions.Finalize(ctx, s, profiles); err != nil {
		log.Printf("coordinator: finalize %s failed: %v", s.ID, err)
		return fmt.Errorf("finalize session: %w", err)
	}

	c.gateway.Broadcast(s.ID, Event{Type: EventSessionEnded, Payload: c.endedPayload(s, profiles, draw)})

	c.registry.Evict(s.ID)
	if c.presence != nil {
		c.presence.Clear(ctx, s.ID)
	}
	return nil
}

// applyRatings computes both players' Elo updates from pre-match ratings
// and appends a match-history record to each profile. Players are already
// sorted winner-first.
func (c *Coordinator) applyRatings(ctx context.Context, s *domain.Session, draw bool, now time.Time) []*domain.UserProfile {
	top, bottom := &s.Players[0], &s.Players[1]
	topProfile := c.loadProfile(ctx, top.UserID)
	bottomProfile := c.loadProfile(ctx, bottom.UserID)

	result := rating.Win
	if draw {
		result = rating.Draw
	}
	topUpdate, bottomUpdate := rating.Pair(topProfile.Rating, bottomProfile.Rating, result)

	top.RatingBefore, top.RatingAfter, top.RatingChange = topUpdate.Before, topUpdate.After, topUpdate.Change
	bottom.RatingBefore, bottom.RatingAfter, bottom.RatingChange = bottomUpdate.Before, bottomUpdate.After, bottomUpdate.Change
	if draw {
		top.Rank, bottom.Rank = 1, 1
	} else {
		top.Rank, bottom.Rank = 1, 2
	}

	topProfile.Rating = topUpdate.After
	bottomProfile.Rating = bottomUpdate.After
	topProfile.Matches = append(topProfile.Matches, matchRecord(s, top, bottom.UserID, resultLabel(draw, true), now))
	bottomProfile.Matches = append(bottomProfile.Matches, matchRecord(s, bottom, top.UserID, resultLabel(draw, false), now))

	return []*domain.UserProfile{topProfile, bottomProfile}
}

// loadProfile fetches a user, falling back to a fresh default-rating
// profile when the record is missing or unreadable.
func (c *Coordinator) loadProfile(ctx context.Context, userID string) *domain.UserProfile {
	u, err := c.users.FindByID(ctx, userID)
	if err != nil || u == nil {
		if err != nil {
			log.Printf("coordinator: load user %s: %v", userID, err)
		}
		return &domain.UserProfile{ID: userID, Rating: rating.DefaultRating}
	}
	if u.Rating == 0 {
		u.Rating = rating.DefaultRating
	}
	return u
}

func (c *Coordinator) endedPayload(s *domain.Session, profiles []*domain.UserProfile, draw bool) SessionEndedPayload {
	byID := make(map[string]*domain.UserProfile, len(profiles))
	for _, u := range profiles {
		byID[u.ID] = u
	}

	players := make([]PlayerResult, 0, len(s.Players))
	for i := range s.Players {
		p := &s.Players[i]
		pr := PlayerResult{
			UserID:            p.UserID,
			Score:             p.Score,
			Rank:              p.Rank,
			OldRating:         p.RatingBefore,
			NewRating:         p.RatingAfter,
			RatingChange:      p.RatingChange,
			CorrectAnswers:    p.CorrectAnswers,
			WrongAnswers:      p.WrongAnswers,
			QuestionsAnswered: p.QuestionsAnswered,
			Result:            resultLabel(draw, i == 0),
		}
		if u, ok := byID[p.UserID]; ok {
			pr.Username = u.Username
			pr.AvatarURL = u.AvatarURL
		}
		players = append(players, pr)
	}

	duration := 0
	if s.StartTime != nil && s.EndTime != nil {
		duration = int(s.EndTime.Sub(*s.StartTime) / time.Second)
	}
	return SessionEndedPayload{
		SessionID:       s.ID,
		TotalQuestions:  s.TotalQuestions,
		DurationSeconds: duration,
		Result:          s.Result,
		WinnerID:        s.WinnerID,
		Players:         players,
	}
}

func resultLabel(draw, top bool) string {
	if draw {
		return "draw"
	}
	if top {
		return "win"
	}
	return "loss"
}

func matchRecord(s *domain.Session, p *domain.Player, opponentID, result string, now time.Time) domain.MatchRecord {
	return domain.MatchRecord{
		SessionID:      s.ID,
		OpponentID:     opponentID,
		Result:         result,
		RatingChange:   p.RatingChange,
		Score:          p.Score,
		CorrectAnswers: p.CorrectAnswers,
		WrongAnswers:   p.WrongAnswers,
		TotalQuestions: s.TotalQuestions,
		PlayedAt:       now,
	}
}

func aggregates(s *domain.Session) []PlayerAggregate {
	out := make([]PlayerAggregate, 0, len(s.Players))
	for i := range s.Players {
		p := &s.Players[i]
		out = append(out, PlayerAggregate{
			UserID:            p.UserID,
			Status:            p.Status,
			Score:             p.Score,
			CorrectAnswers:    p.CorrectAnswers,
			WrongAnswers:      p.WrongAnswers,
			QuestionsAnswered: p.QuestionsAnswered,
		})
	}
	return out
}

func questionIDs(qs []domain.Question) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
	}
	return ids
}
