package store

import "context"

// User is one chat user. Created on first contact, never deleted.
type User struct {
	ID              string `json:"user_id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	CreatedAt       int64  `json:"created_at"`
	LastInteraction int64  `json:"last_interaction"`
	Settings        string `json:"settings"`
}

// MessageRecord is one turn of conversation history.
type MessageRecord struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Preferences are the per-user delivery toggles. A user without a row
// has both toggles off.
type Preferences struct {
	VoiceEnabled bool   `json:"voice_enabled"`
	ImageEnabled bool   `json:"image_enabled"`
	Personality  string `json:"personality"`
}

// PreferencesPatch is a partial update; nil fields are left untouched.
type PreferencesPatch struct {
	VoiceEnabled *bool
	ImageEnabled *bool
	Personality  *string
}

// Interests tracks keyword occurrence counts per user. Topics and
// Emotions are carried for schema compatibility but nothing writes
// them yet. Counters only grow; there is no pruning.
type Interests struct {
	Topics   map[string]int `json:"topics"`
	Keywords map[string]int `json:"keywords"`
	Emotions map[string]int `json:"emotions"`
}

func NewInterests() Interests {
	return Interests{
		Topics:   make(map[string]int),
		Keywords: make(map[string]int),
		Emotions: make(map[string]int),
	}
}

// PatternCount is one interaction-pattern counter.
type PatternCount struct {
	PatternType    string `json:"pattern_type"`
	Frequency      int    `json:"frequency"`
	LastOccurrence int64  `json:"last_occurrence"`
}

// LearnedPreferences accumulates what the bot has inferred about a
// user. PreferredTime counts messages per time-of-day bucket.
type LearnedPreferences struct {
	PreferredTopics map[string]int `json:"preferred_topics"`
	PreferredStyle  map[string]int `json:"preferred_style"`
	PreferredTime   map[string]int `json:"preferred_time"`
}

func NewLearnedPreferences() LearnedPreferences {
	return LearnedPreferences{
		PreferredTopics: make(map[string]int),
		PreferredStyle:  make(map[string]int),
		PreferredTime:   make(map[string]int),
	}
}

// Store is the record store consumed by the orchestrator and the
// profile learner. Every operation is keyed by user ID; there is no
// cross-user state. Implementations commit each write independently,
// no transaction spans multiple calls.
type Store interface {
	// GetUser returns nil when the user does not exist.
	GetUser(ctx context.Context, userID string) (*User, error)
	// UpsertUser creates the user if absent and refreshes
	// last_interaction either way.
	UpsertUser(ctx context.Context, u User) error

	AppendMessage(ctx context.Context, userID, text, role string) error
	// GetRecentMessages returns at most limit records, most recent first.
	GetRecentMessages(ctx context.Context, userID string, limit int) ([]MessageRecord, error)

	// GetPreferences reports found=false when the user has no row.
	GetPreferences(ctx context.Context, userID string) (Preferences, bool, error)
	UpsertPreferences(ctx context.Context, userID string, patch PreferencesPatch) error

	GetInterests(ctx context.Context, userID string) (Interests, error)
	PutInterests(ctx context.Context, userID string, in Interests) error

	// IncrementPattern creates the counter at 1 or bumps it by 1,
	// refreshing last_occurrence.
	IncrementPattern(ctx context.Context, userID, patternType string) error
	GetTopPatterns(ctx context.Context, userID string, limit int) ([]PatternCount, error)

	GetLearnedPreferences(ctx context.Context, userID string) (LearnedPreferences, error)
	PutLearnedPreferences(ctx context.Context, userID string, lp LearnedPreferences) error
}
