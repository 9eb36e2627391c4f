package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Message is one turn of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ModelConfig struct {
	ID       string
	MaxToken int
}

var DefaultModels = []ModelConfig{
	{ID: "gpt-4o-mini", MaxToken: 2000},
	{ID: "gpt-3.5-turbo", MaxToken: 2000},
}

// KeyState tracks the health of an API key
type KeyState struct {
	Key          string
	FailureCount int
	LastUsed     time.Time
	LastSuccess  time.Time
}

type Client struct {
	keys        []*KeyState
	keyMu       sync.RWMutex
	clients     map[string]openai.Client
	clientsMu   sync.RWMutex
	baseURL     string
	temperature float64
	topP        float64
	models      []ModelConfig
}

// NewClient creates a client with support for multiple API keys (comma-separated).
// Keys are rotated based on failure count (least failures first).
func NewClient(apiKeys string, temperature, topP float64, models []ModelConfig) *Client {
	if len(models) == 0 {
		models = DefaultModels
	}

	keyStrings := strings.Split(apiKeys, ",")
	keys := make([]*KeyState, 0, len(keyStrings))
	for _, k := range keyStrings {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, &KeyState{Key: k})
		}
	}

	if len(keys) == 0 {
		log.Println("Warning: No API keys provided")
	} else {
		log.Printf("Loaded %d completion API key(s)", len(keys))
	}

	return &Client{
		keys:        keys,
		clients:     make(map[string]openai.Client),
		temperature: temperature,
		topP:        topP,
		models:      models,
	}
}

func (c *Client) getClient(key string) openai.Client {
	c.clientsMu.RLock()
	if client, ok := c.clients[key]; ok {
		c.clientsMu.RUnlock()
		return client
	}
	c.clientsMu.RUnlock()

	c.clientsMu.Lock()
	defer c.clientsMu.Unlock()

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if c.baseURL != "" {
		opts = append(opts, option.WithBaseURL(c.baseURL))
	}
	client := openai.NewClient(opts...)
	c.clients[key] = client
	return client
}

func (c *Client) getBestKey() *KeyState {
	c.keyMu.RLock()
	defer c.keyMu.RUnlock()

	if len(c.keys) == 0 {
		return nil
	}

	best := c.keys[0]
	for _, k := range c.keys[1:] {
		if k.FailureCount < best.FailureCount {
			best = k
		}
	}
	return best
}

func (c *Client) recordSuccess(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.LastSuccess = time.Now()
	key.LastUsed = time.Now()
	// Gradual recovery
	if key.FailureCount > 0 {
		key.FailureCount--
	}
}

func (c *Client) recordFailure(key *KeyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.FailureCount++
	key.LastUsed = time.Now()
}

// ChatCompletion runs the message sequence against the prioritized
// model list and returns the first successful completion text.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	keyState := c.getBestKey()
	if keyState == nil {
		return "", fmt.Errorf("no API keys configured")
	}

	client := c.getClient(keyState.Key)

	chatMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case "system":
			chatMessages[i] = openai.SystemMessage(msg.Content)
		case "assistant":
			chatMessages[i] = openai.AssistantMessage(msg.Content)
		default:
			chatMessages[i] = openai.UserMessage(msg.Content)
		}
	}

	var lastErr error
	for _, modelConf := range c.models {
		params := openai.ChatCompletionNewParams{
			Model:       shared.ChatModel(modelConf.ID),
			Messages:    chatMessages,
			Temperature: openai.Float(c.temperature),
			TopP:        openai.Float(c.topP),
			MaxTokens:   openai.Int(int64(modelConf.MaxToken)),
		}

		start := time.Now()
		resp, err := client.Chat.Completions.New(ctx, params)
		if err != nil {
			c.recordFailure(keyState)
			lastErr = fmt.Errorf("model %s: %w", modelConf.ID, err)
			// Switch to the healthiest key before the next model
			if next := c.getBestKey(); next != nil && next != keyState {
				keyState = next
				client = c.getClient(keyState.Key)
			}
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model %s: empty response", modelConf.ID)
			continue
		}

		c.recordSuccess(keyState)
		log.Printf("Model %s success (took %v, input_tokens=%d, output_tokens=%d)",
			modelConf.ID, time.Since(start), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("all models exhausted. Last error: %w", lastErr)
}
