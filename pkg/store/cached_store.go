package store

import (
	"context"
	"encoding/json"
	"time"

	"nekochat/pkg/cache"
)

// cachedListMax bounds the Redis copy of a user's history. Reads that
// want more than this fall through to the backing store.
const cachedListMax = 20

// cacheClient is the slice of cache.Cache the store uses.
// *cache.Cache satisfies it.
type cacheClient interface {
	Key(parts ...string) string
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// CachedStore layers Redis over a backing Store for the two per-message
// hot paths: recent history and preference lookups. Cache failures are
// swallowed; the backing store stays the source of truth.
type CachedStore struct {
	Store
	cache cacheClient
}

func NewCachedStore(store Store, cache *cache.Cache) *CachedStore {
	return &CachedStore{
		Store: store,
		cache: cache,
	}
}

func (c *CachedStore) GetRecentMessages(ctx context.Context, userID string, limit int) ([]MessageRecord, error) {
	if limit > cachedListMax {
		return c.Store.GetRecentMessages(ctx, userID, limit)
	}

	key := c.cache.Key("recent_messages", userID)

	// Cache holds newest-first, same order as the Store contract. Serve
	// from it only when it can fill the whole window; a shorter list may
	// be just a tail of what the backing store holds.
	data, err := c.cache.LRange(ctx, key, 0, int64(limit)-1)
	if err == nil && len(data) >= limit {
		messages := make([]MessageRecord, 0, len(data))
		for _, d := range data {
			var msg MessageRecord
			if unmarshalErr := json.Unmarshal([]byte(d), &msg); unmarshalErr != nil {
				messages = nil
				break
			}
			messages = append(messages, msg)
		}
		if len(messages) == len(data) {
			return messages, nil
		}
	}

	messages, err := c.Store.GetRecentMessages(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	// Backfill the cache. A push failure partway would leave a list
	// whose head is an older message, so on any failure the key is
	// dropped instead of kept partial.
	if len(messages) > 0 {
		if backfillErr := c.backfill(ctx, key, messages); backfillErr != nil {
			_ = c.cache.Delete(ctx, key)
		}
	}

	return messages, nil
}

// backfill replaces the cached list, pushing oldest first so the
// newest ends at the head.
func (c *CachedStore) backfill(ctx context.Context, key string, messages []MessageRecord) error {
	if err := c.cache.Delete(ctx, key); err != nil {
		return err
	}
	for i := len(messages) - 1; i >= 0; i-- {
		msgJSON, err := json.Marshal(messages[i])
		if err != nil {
			return err
		}
		if err := c.cache.LPush(ctx, key, string(msgJSON)); err != nil {
			return err
		}
	}
	if err := c.cache.LTrim(ctx, key, 0, cachedListMax-1); err != nil {
		return err
	}
	return c.cache.Expire(ctx, key, cache.RecentMessagesTTL)
}

func (c *CachedStore) AppendMessage(ctx context.Context, userID, text, role string) error {
	err := c.Store.AppendMessage(ctx, userID, text, role)
	if err != nil {
		return err
	}

	key := c.cache.Key("recent_messages", userID)

	msg := MessageRecord{
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixNano(),
	}
	msgJSON, marshalErr := json.Marshal(msg)
	if marshalErr != nil {
		return nil
	}

	if pushErr := c.cache.LPush(ctx, key, string(msgJSON)); pushErr != nil {
		return nil
	}

	_ = c.cache.LTrim(ctx, key, 0, cachedListMax-1)
	_ = c.cache.Expire(ctx, key, cache.RecentMessagesTTL)

	return nil
}

func (c *CachedStore) GetPreferences(ctx context.Context, userID string) (Preferences, bool, error) {
	key := c.cache.Key("preferences", userID)

	var prefs Preferences
	if err := c.cache.GetJSON(ctx, key, &prefs); err == nil {
		return prefs, true, nil
	}

	prefs, found, err := c.Store.GetPreferences(ctx, userID)
	if err != nil {
		return Preferences{}, false, err
	}
	if found {
		_ = c.cache.SetJSON(ctx, key, prefs, cache.PreferencesTTL)
	}
	return prefs, found, nil
}

func (c *CachedStore) UpsertPreferences(ctx context.Context, userID string, patch PreferencesPatch) error {
	if err := c.Store.UpsertPreferences(ctx, userID, patch); err != nil {
		return err
	}
	// Invalidate rather than recompute; the next read repopulates.
	_ = c.cache.Delete(ctx, c.cache.Key("preferences", userID))
	return nil
}
