package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store. It backs tests and lets the bot run
// without a database. A single mutex serializes everything, which also
// makes the pattern increments atomic.
type MemStore struct {
	mu       sync.Mutex
	users    map[string]*User
	messages map[string][]MessageRecord
	prefs    map[string]Preferences
	interest map[string]Interests
	patterns map[string]map[string]*PatternCount
	learned  map[string]LearnedPreferences
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[string]*User),
		messages: make(map[string][]MessageRecord),
		prefs:    make(map[string]Preferences),
		interest: make(map[string]Interests),
		patterns: make(map[string]map[string]*PatternCount),
		learned:  make(map[string]LearnedPreferences),
	}
}

func (m *MemStore) GetUser(_ context.Context, userID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *MemStore) UpsertUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().Unix()
	existing, ok := m.users[u.ID]
	if !ok {
		u.CreatedAt = now
		u.LastInteraction = now
		if u.Settings == "" {
			u.Settings = "{}"
		}
		m.users[u.ID] = &u
		return nil
	}
	existing.LastInteraction = now
	return nil
}

func (m *MemStore) AppendMessage(_ context.Context, userID, text, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[userID] = append(m.messages[userID], MessageRecord{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixNano(),
	})
	return nil
}

func (m *MemStore) GetRecentMessages(_ context.Context, userID string, limit int) ([]MessageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.messages[userID]
	if limit > len(all) {
		limit = len(all)
	}
	// Most recent first.
	out := make([]MessageRecord, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *MemStore) GetPreferences(_ context.Context, userID string) (Preferences, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[userID]
	return p, ok, nil
}

func (m *MemStore) UpsertPreferences(_ context.Context, userID string, patch PreferencesPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.prefs[userID]
	if patch.VoiceEnabled != nil {
		p.VoiceEnabled = *patch.VoiceEnabled
	}
	if patch.ImageEnabled != nil {
		p.ImageEnabled = *patch.ImageEnabled
	}
	if patch.Personality != nil {
		p.Personality = *patch.Personality
	}
	m.prefs[userID] = p
	return nil
}

func (m *MemStore) GetInterests(_ context.Context, userID string) (Interests, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.interest[userID]
	if !ok {
		return NewInterests(), nil
	}
	return copyInterests(in), nil
}

func (m *MemStore) PutInterests(_ context.Context, userID string, in Interests) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interest[userID] = copyInterests(in)
	return nil
}

func (m *MemStore) IncrementPattern(_ context.Context, userID, patternType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType, ok := m.patterns[userID]
	if !ok {
		byType = make(map[string]*PatternCount)
		m.patterns[userID] = byType
	}
	p, ok := byType[patternType]
	if !ok {
		byType[patternType] = &PatternCount{
			PatternType:    patternType,
			Frequency:      1,
			LastOccurrence: time.Now().Unix(),
		}
		return nil
	}
	p.Frequency++
	p.LastOccurrence = time.Now().Unix()
	return nil
}

func (m *MemStore) GetTopPatterns(_ context.Context, userID string, limit int) ([]PatternCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PatternCount
	for _, p := range m.patterns[userID] {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].PatternType < out[j].PatternType
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) GetLearnedPreferences(_ context.Context, userID string) (LearnedPreferences, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lp, ok := m.learned[userID]
	if !ok {
		return NewLearnedPreferences(), nil
	}
	return copyLearned(lp), nil
}

func (m *MemStore) PutLearnedPreferences(_ context.Context, userID string, lp LearnedPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.learned[userID] = copyLearned(lp)
	return nil
}

func copyInterests(in Interests) Interests {
	return Interests{
		Topics:   copyCounts(in.Topics),
		Keywords: copyCounts(in.Keywords),
		Emotions: copyCounts(in.Emotions),
	}
}

func copyLearned(lp LearnedPreferences) LearnedPreferences {
	return LearnedPreferences{
		PreferredTopics: copyCounts(lp.PreferredTopics),
		PreferredStyle:  copyCounts(lp.PreferredStyle),
		PreferredTime:   copyCounts(lp.PreferredTime),
	}
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
