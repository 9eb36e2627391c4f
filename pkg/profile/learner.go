package profile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"nekochat/pkg/store"
)

// Learner accumulates per-user interaction knowledge: keyword counts,
// interaction-pattern counters and time-of-day habits. All counters
// only grow; there is no decay or pruning. Callers serialize updates
// for one user; the read-modify-write on the interest map is not
// atomic on its own.
type Learner struct {
	store store.Store
	now   func() time.Time
}

func NewLearner(s store.Store) *Learner {
	return &Learner{store: s, now: time.Now}
}

// Profile is the aggregated view of what the bot knows about a user.
type Profile struct {
	Interests   store.Interests
	Patterns    []store.PatternCount
	Preferences store.LearnedPreferences
}

// UpdateInterests tokenizes the message and bumps every keyword's
// counter. Tokenization is a plain whitespace split.
func (l *Learner) UpdateInterests(ctx context.Context, userID, message string) error {
	interests, err := l.store.GetInterests(ctx, userID)
	if err != nil {
		return fmt.Errorf("get interests: %w", err)
	}

	for _, keyword := range extractKeywords(message) {
		interests.Keywords[keyword]++
	}

	if err := l.store.PutInterests(ctx, userID, interests); err != nil {
		return fmt.Errorf("put interests: %w", err)
	}
	return nil
}

func (l *Learner) UpdateInteractionPattern(ctx context.Context, userID, patternType string) error {
	return l.store.IncrementPattern(ctx, userID, patternType)
}

// UpdatePreferences bumps the counter for the current time-of-day
// bucket, keeping whatever topics/style maps are already stored.
func (l *Learner) UpdatePreferences(ctx context.Context, userID string) error {
	prefs, err := l.store.GetLearnedPreferences(ctx, userID)
	if err != nil {
		return fmt.Errorf("get learned preferences: %w", err)
	}

	bucket := TimeBucket(l.now().Hour())
	prefs.PreferredTime[bucket]++

	if err := l.store.PutLearnedPreferences(ctx, userID, prefs); err != nil {
		return fmt.Errorf("put learned preferences: %w", err)
	}
	return nil
}

func (l *Learner) Profile(ctx context.Context, userID string) (Profile, error) {
	interests, err := l.store.GetInterests(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	patterns, err := l.store.GetTopPatterns(ctx, userID, 5)
	if err != nil {
		return Profile{}, err
	}

	learned, err := l.store.GetLearnedPreferences(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	return Profile{
		Interests:   interests,
		Patterns:    patterns,
		Preferences: learned,
	}, nil
}

// PersonalizedPrompt builds at most two sentences about the user: one
// naming their top keywords and one noting the current time bucket if
// they have history in it. Empty string when neither applies.
func (l *Learner) PersonalizedPrompt(ctx context.Context, userID string) (string, error) {
	p, err := l.Profile(ctx, userID)
	if err != nil {
		return "", err
	}

	var parts []string

	if top := topKeywords(p.Interests.Keywords, 3); len(top) > 0 {
		names := make([]string, len(top))
		for i, kw := range top {
			names[i] = kw.Keyword
		}
		parts = append(parts, fmt.Sprintf("主人对%s很感兴趣呢~", strings.Join(names, "、")))
	}

	bucket := TimeBucket(l.now().Hour())
	if p.Preferences.PreferredTime[bucket] > 0 {
		parts = append(parts, fmt.Sprintf("现在是%s，主人通常这个时候都会来找我聊天呢~", bucket))
	}

	return strings.Join(parts, " "), nil
}

// Summary renders the profile for the user themselves.
func (l *Learner) Summary(ctx context.Context, userID string) (string, error) {
	p, err := l.Profile(ctx, userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("主人，这是我对你的了解喵~：\n\n")

	if top := topKeywords(p.Interests.Keywords, 5); len(top) > 0 {
		b.WriteString("主人最感兴趣的话题：\n")
		for _, kw := range top {
			fmt.Fprintf(&b, "- %s（%d次）\n", kw.Keyword, kw.Count)
		}
	}

	if len(p.Patterns) > 0 {
		b.WriteString("\n主人的互动习惯：\n")
		for _, pat := range p.Patterns {
			fmt.Fprintf(&b, "- %s（%d次）\n", pat.PatternType, pat.Frequency)
		}
	}

	return b.String(), nil
}

// TimeBucket maps a local hour to one of four fixed buckets.
func TimeBucket(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 18:
		return "afternoon"
	case hour >= 18 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

func extractKeywords(text string) []string {
	return strings.Fields(text)
}

type keywordCount struct {
	Keyword string
	Count   int
}

// topKeywords returns the n highest-count keywords, ties broken by a
// stable lexicographic order.
func topKeywords(counts map[string]int, n int) []keywordCount {
	out := make([]keywordCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, keywordCount{Keyword: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}
