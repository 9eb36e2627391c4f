package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nekochat/pkg/surreal"
)

// SurrealStore persists all user records in SurrealDB. Interest and
// learned-preference maps are stored as JSON blobs in a single field,
// mirroring how the rest of the records stay one-row-per-user.
type SurrealStore struct {
	client *surreal.Client
}

func NewSurrealStore(client *surreal.Client) *SurrealStore {
	store := &SurrealStore{client: client}
	if err := store.Init(); err != nil {
		// Log but don't fail startup; the schema may already exist or
		// the DB may become reachable later.
		fmt.Printf("Warning: Failed to initialize SurrealDB schema: %v\n", err)
	}
	return store
}

func (s *SurrealStore) Init() error {
	query := `
		DEFINE TABLE IF NOT EXISTS users SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON users TYPE string;
		DEFINE FIELD IF NOT EXISTS username ON users TYPE string;
		DEFINE FIELD IF NOT EXISTS first_name ON users TYPE string;
		DEFINE FIELD IF NOT EXISTS last_name ON users TYPE string;
		DEFINE FIELD IF NOT EXISTS created_at ON users TYPE int;
		DEFINE FIELD IF NOT EXISTS last_interaction ON users TYPE int;
		DEFINE FIELD IF NOT EXISTS settings ON users TYPE string;

		DEFINE TABLE IF NOT EXISTS messages SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON messages TYPE string;
		DEFINE FIELD IF NOT EXISTS text ON messages TYPE string;
		DEFINE FIELD IF NOT EXISTS role ON messages TYPE string;
		DEFINE FIELD IF NOT EXISTS timestamp ON messages TYPE int;

		DEFINE TABLE IF NOT EXISTS preferences SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON preferences TYPE string;
		DEFINE FIELD IF NOT EXISTS voice_enabled ON preferences TYPE bool;
		DEFINE FIELD IF NOT EXISTS image_enabled ON preferences TYPE bool;
		DEFINE FIELD IF NOT EXISTS personality ON preferences TYPE string;

		DEFINE TABLE IF NOT EXISTS interests SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON interests TYPE string;
		DEFINE FIELD IF NOT EXISTS data ON interests TYPE string;
		DEFINE FIELD IF NOT EXISTS last_updated ON interests TYPE int;

		DEFINE TABLE IF NOT EXISTS interaction_patterns SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON interaction_patterns TYPE string;
		DEFINE FIELD IF NOT EXISTS pattern_type ON interaction_patterns TYPE string;
		DEFINE FIELD IF NOT EXISTS frequency ON interaction_patterns TYPE int;
		DEFINE FIELD IF NOT EXISTS last_occurrence ON interaction_patterns TYPE int;

		DEFINE TABLE IF NOT EXISTS learned_preferences SCHEMAFULL;
		DEFINE FIELD IF NOT EXISTS user_id ON learned_preferences TYPE string;
		DEFINE FIELD IF NOT EXISTS data ON learned_preferences TYPE string;
		DEFINE FIELD IF NOT EXISTS last_updated ON learned_preferences TYPE int;
	`
	_, err := s.client.Query(context.Background(), query, map[string]interface{}{})
	return err
}

func (s *SurrealStore) GetUser(ctx context.Context, userID string) (*User, error) {
	query := `SELECT * FROM type::thing("users", $user_id);`
	result, err := s.client.Query(ctx, query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}

	rows := surreal.Rows(result)
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	u := &User{ID: userID}
	u.Username, _ = row["username"].(string)
	u.FirstName, _ = row["first_name"].(string)
	u.LastName, _ = row["last_name"].(string)
	u.Settings, _ = row["settings"].(string)
	u.CreatedAt = surreal.Int64(row["created_at"])
	u.LastInteraction = surreal.Int64(row["last_interaction"])
	return u, nil
}

func (s *SurrealStore) UpsertUser(ctx context.Context, u User) error {
	query := `
		INSERT INTO users (id, user_id, username, first_name, last_name, created_at, last_interaction, settings)
		VALUES (type::thing("users", $user_id), $user_id, $username, $first_name, $last_name, time::unix(), time::unix(), "{}")
		ON DUPLICATE KEY UPDATE last_interaction = time::unix();
	`
	_, err := s.client.Query(ctx, query, map[string]interface{}{
		"user_id":    u.ID,
		"username":   u.Username,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	})
	return err
}

func (s *SurrealStore) AppendMessage(ctx context.Context, userID, text, role string) error {
	item := map[string]interface{}{
		"user_id":   userID,
		"text":      text,
		"role":      role,
		"timestamp": time.Now().UnixNano(),
	}
	_, err := s.client.Create(ctx, "messages", item)
	return err
}

func (s *SurrealStore) GetRecentMessages(ctx context.Context, userID string, limit int) ([]MessageRecord, error) {
	query := fmt.Sprintf(`
		SELECT role, text, timestamp FROM messages
		WHERE user_id = $user_id
		ORDER BY timestamp DESC
		LIMIT %d;
	`, limit)

	result, err := s.client.Query(ctx, query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}

	var messages []MessageRecord
	for _, row := range surreal.Rows(result) {
		msg := MessageRecord{}
		msg.Role, _ = row["role"].(string)
		msg.Text, _ = row["text"].(string)
		msg.Timestamp = surreal.Int64(row["timestamp"])
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *SurrealStore) GetPreferences(ctx context.Context, userID string) (Preferences, bool, error) {
	query := `SELECT voice_enabled, image_enabled, personality FROM type::thing("preferences", $user_id);`
	result, err := s.client.Query(ctx, query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return Preferences{}, false, err
	}

	rows := surreal.Rows(result)
	if len(rows) == 0 {
		return Preferences{}, false, nil
	}

	row := rows[0]
	prefs := Preferences{}
	prefs.VoiceEnabled, _ = row["voice_enabled"].(bool)
	prefs.ImageEnabled, _ = row["image_enabled"].(bool)
	prefs.Personality, _ = row["personality"].(string)
	return prefs, true, nil
}

func (s *SurrealStore) UpsertPreferences(ctx context.Context, userID string, patch PreferencesPatch) error {
	// Insert defaults for unsupplied fields but only overwrite the
	// supplied ones when the row already exists.
	vars := map[string]interface{}{
		"user_id":       userID,
		"voice_enabled": false,
		"image_enabled": false,
		"personality":   "",
	}
	var updates []string
	if patch.VoiceEnabled != nil {
		vars["voice_enabled"] = *patch.VoiceEnabled
		updates = append(updates, "voice_enabled = $voice_enabled")
	}
	if patch.ImageEnabled != nil {
		vars["image_enabled"] = *patch.ImageEnabled
		updates = append(updates, "image_enabled = $image_enabled")
	}
	if patch.Personality != nil {
		vars["personality"] = *patch.Personality
		updates = append(updates, "personality = $personality")
	}
	if len(updates) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		INSERT INTO preferences (id, user_id, voice_enabled, image_enabled, personality)
		VALUES (type::thing("preferences", $user_id), $user_id, $voice_enabled, $image_enabled, $personality)
		ON DUPLICATE KEY UPDATE %s;
	`, strings.Join(updates, ", "))

	_, err := s.client.Query(ctx, query, vars)
	return err
}

func (s *SurrealStore) GetInterests(ctx context.Context, userID string) (Interests, error) {
	data, err := s.getJSONBlob(ctx, "interests", userID)
	if err != nil {
		return Interests{}, err
	}
	interests := NewInterests()
	if data != "" {
		if err := json.Unmarshal([]byte(data), &interests); err != nil {
			return Interests{}, fmt.Errorf("corrupt interests record for %s: %w", userID, err)
		}
	}
	return interests, nil
}

func (s *SurrealStore) PutInterests(ctx context.Context, userID string, in Interests) error {
	return s.putJSONBlob(ctx, "interests", userID, in)
}

func (s *SurrealStore) IncrementPattern(ctx context.Context, userID, patternType string) error {
	// Record id is user:pattern so the upsert-with-increment is a
	// single atomic statement.
	query := `
		INSERT INTO interaction_patterns (id, user_id, pattern_type, frequency, last_occurrence)
		VALUES (type::thing("interaction_patterns", string::concat($user_id, ":", $pattern_type)), $user_id, $pattern_type, 1, time::unix())
		ON DUPLICATE KEY UPDATE frequency += 1, last_occurrence = time::unix();
	`
	_, err := s.client.Query(ctx, query, map[string]interface{}{
		"user_id":      userID,
		"pattern_type": patternType,
	})
	return err
}

func (s *SurrealStore) GetTopPatterns(ctx context.Context, userID string, limit int) ([]PatternCount, error) {
	query := fmt.Sprintf(`
		SELECT pattern_type, frequency, last_occurrence FROM interaction_patterns
		WHERE user_id = $user_id
		ORDER BY frequency DESC
		LIMIT %d;
	`, limit)

	result, err := s.client.Query(ctx, query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return nil, err
	}

	var patterns []PatternCount
	for _, row := range surreal.Rows(result) {
		p := PatternCount{}
		p.PatternType, _ = row["pattern_type"].(string)
		p.Frequency = int(surreal.Int64(row["frequency"]))
		p.LastOccurrence = surreal.Int64(row["last_occurrence"])
		patterns = append(patterns, p)
	}
	return patterns, nil
}

func (s *SurrealStore) GetLearnedPreferences(ctx context.Context, userID string) (LearnedPreferences, error) {
	data, err := s.getJSONBlob(ctx, "learned_preferences", userID)
	if err != nil {
		return LearnedPreferences{}, err
	}
	lp := NewLearnedPreferences()
	if data != "" {
		if err := json.Unmarshal([]byte(data), &lp); err != nil {
			return LearnedPreferences{}, fmt.Errorf("corrupt learned_preferences record for %s: %w", userID, err)
		}
	}
	return lp, nil
}

func (s *SurrealStore) PutLearnedPreferences(ctx context.Context, userID string, lp LearnedPreferences) error {
	return s.putJSONBlob(ctx, "learned_preferences", userID, lp)
}

func (s *SurrealStore) getJSONBlob(ctx context.Context, table, userID string) (string, error) {
	query := fmt.Sprintf(`SELECT data FROM type::thing("%s", $user_id);`, table)
	result, err := s.client.Query(ctx, query, map[string]interface{}{"user_id": userID})
	if err != nil {
		return "", err
	}

	rows := surreal.Rows(result)
	if len(rows) == 0 {
		return "", nil
	}
	data, _ := rows[0]["data"].(string)
	return data, nil
}

func (s *SurrealStore) putJSONBlob(ctx context.Context, table string, userID string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", table, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, data, last_updated)
		VALUES (type::thing("%s", $user_id), $user_id, $data, time::unix())
		ON DUPLICATE KEY UPDATE data = $data, last_updated = time::unix();
	`, table, table)

	_, err = s.client.Query(ctx, query, map[string]interface{}{
		"user_id": userID,
		"data":    string(data),
	})
	return err
}
