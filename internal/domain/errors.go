package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id does not resolve.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotJoinable is returned when joining a session that already started or ended.
	ErrSessionNotJoinable = errors.New("session is not accepting players")
	// ErrSessionNotActive is returned for submissions against a non-ongoing session.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrPlayerNotFound is returned when a user acts on a session they never joined.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrQuestionNotFound indicates a submitted question index is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoQuestions indicates no usable questions could be loaded for a session.
	ErrNoQuestions = errors.New("no questions available")
	// ErrUserNotFound is returned when a user profile cannot be loaded.
	ErrUserNotFound = errors.New("user not found")
)
