package bot

import (
	"bytes"
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"nekochat/pkg/emotion"
	"nekochat/pkg/imagegen"
	"nekochat/pkg/llm"
	"nekochat/pkg/profile"
	"nekochat/pkg/store"
)

// apologyReply is sent whenever the pipeline cannot produce a real
// answer. One fixed string for every failure mode.
const apologyReply = "呜呜出错了喵~"

const interactionPatternChat = "chat"

type Handler struct {
	completion CompletionClient
	analyzer   EmotionClassifier
	voice      VoiceClient
	image      ImageClient
	store      store.Store
	learner    *profile.Learner
	character  Character

	historyLimit   int
	requestTimeout time.Duration
	imagePrefix    string
	imageMaxDim    int

	botID string
	locks *userLocks
	wg    sync.WaitGroup
}

func NewHandler(completion CompletionClient, analyzer EmotionClassifier, voice VoiceClient, image ImageClient, st store.Store, character Character, historyLimit int, requestTimeout time.Duration, imagePrefix string, imageMaxDim int) *Handler {
	return &Handler{
		completion:     completion,
		analyzer:       analyzer,
		voice:          voice,
		image:          image,
		store:          st,
		learner:        profile.NewLearner(st),
		character:      character,
		historyLimit:   historyLimit,
		requestTimeout: requestTimeout,
		imagePrefix:    imagePrefix,
		imageMaxDim:    imageMaxDim,
		locks:          newUserLocks(),
	}
}

func (h *Handler) SetBotID(id string) {
	h.botID = id
}

// Wait blocks until in-flight voice and image deliveries finish. Used
// on shutdown.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// MessageCreate is the discordgo event handler.
func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.HandleMessage(s, m)
}

// HandleMessage runs the full chat pipeline for one incoming message:
// profile updates and prompt assembly under the user's lock, one text
// reply, then best-effort voice and image delivery in the background.
func (h *Handler) HandleMessage(s Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == h.botID || m.Author.Bot {
		return
	}

	channel, err := s.Channel(m.ChannelID)
	isDM := err == nil && channel.Type == discordgo.ChannelTypeDM
	if !isDM && !h.mentionsBot(m) {
		return
	}

	text := h.stripMention(m.Content)
	if text == "" {
		return
	}

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		log.Printf("Error sending typing indicator: %v", err)
	}

	unlock := h.locks.lock(m.Author.ID)
	reply, prefs := h.respond(m.Author, text)
	unlock()

	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		log.Printf("Error sending reply to %s: %v", m.Author.ID, err)
		return
	}

	if reply == apologyReply {
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.enrich(s, m.ChannelID, reply, prefs)
	}()
}

func (h *Handler) mentionsBot(m *discordgo.MessageCreate) bool {
	for _, u := range m.Mentions {
		if u.ID == h.botID {
			return true
		}
	}
	return false
}

func (h *Handler) stripMention(content string) string {
	content = strings.ReplaceAll(content, "<@"+h.botID+">", "")
	content = strings.ReplaceAll(content, "<@!"+h.botID+">", "")
	return strings.TrimSpace(content)
}

// respond produces the final reply text and the user's delivery
// preferences. It is always called with the user's lock held.
func (h *Handler) respond(author *discordgo.User, text string) (string, store.Preferences) {
	ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
	defer cancel()

	userID := author.ID
	if err := h.store.UpsertUser(ctx, store.User{
		ID:        userID,
		Username:  author.Username,
		FirstName: author.GlobalName,
	}); err != nil {
		log.Printf("Error upserting user %s: %v", userID, err)
		return apologyReply, store.Preferences{}
	}

	judgment := h.analyzer.Classify(ctx, text)
	prefix := emotion.ResponseFor(judgment.DominantEmotion, judgment.Intensity)

	if err := h.learner.UpdateInterests(ctx, userID, text); err != nil {
		log.Printf("Error updating interests for %s: %v", userID, err)
		return apologyReply, store.Preferences{}
	}
	if err := h.learner.UpdateInteractionPattern(ctx, userID, interactionPatternChat); err != nil {
		log.Printf("Error updating interaction pattern for %s: %v", userID, err)
		return apologyReply, store.Preferences{}
	}
	if err := h.learner.UpdatePreferences(ctx, userID); err != nil {
		log.Printf("Error updating learned preferences for %s: %v", userID, err)
		return apologyReply, store.Preferences{}
	}

	history, err := h.store.GetRecentMessages(ctx, userID, h.historyLimit)
	if err != nil {
		log.Printf("Error getting history for %s: %v", userID, err)
		return apologyReply, store.Preferences{}
	}

	prefs, _, err := h.store.GetPreferences(ctx, userID)
	if err != nil {
		// Delivery toggles default to off; not worth failing the chat.
		log.Printf("Error getting preferences for %s: %v", userID, err)
		prefs = store.Preferences{}
	}

	messages := []llm.Message{{Role: "system", Content: h.character.SystemPrompt(prefs.Personality)}}

	personalized, err := h.learner.PersonalizedPrompt(ctx, userID)
	if err != nil {
		log.Printf("Error building personalized prompt for %s: %v", userID, err)
	} else if personalized != "" {
		messages = append(messages, llm.Message{Role: "system", Content: personalized})
	}

	// History comes back most recent first; the model wants oldest first.
	for i := len(history) - 1; i >= 0; i-- {
		messages = append(messages, llm.Message{Role: history[i].Role, Content: history[i].Text})
	}
	messages = append(messages, llm.Message{Role: "user", Content: text})

	reply, err := h.completion.ChatCompletion(ctx, messages)
	if err != nil {
		log.Printf("Error getting completion for %s: %v", userID, err)
		return apologyReply, prefs
	}

	final := prefix + "\n\n" + reply

	if err := h.store.AppendMessage(ctx, userID, text, "user"); err != nil {
		log.Printf("Error saving user message for %s: %v", userID, err)
	}
	if err := h.store.AppendMessage(ctx, userID, final, "assistant"); err != nil {
		log.Printf("Error saving assistant message for %s: %v", userID, err)
	}

	return final, prefs
}

// enrich delivers voice and image renditions of the reply when the
// user has them enabled. Both are best-effort: a failure is logged and
// the other delivery still runs.
func (h *Handler) enrich(s Session, channelID, reply string, prefs store.Preferences) {
	if prefs.VoiceEnabled && h.voice != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
		audio, err := h.voice.Synthesize(ctx, reply)
		cancel()
		if err != nil {
			log.Printf("Error synthesizing voice: %v", err)
		} else if _, err := s.ChannelFileSend(channelID, "response.mp3", bytes.NewReader(audio)); err != nil {
			log.Printf("Error sending voice file: %v", err)
		}
	}

	if prefs.ImageEnabled && h.image != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
		data, err := h.image.Generate(ctx, h.imagePrefix+firstRunes(reply, 100))
		cancel()
		if err != nil {
			log.Printf("Error generating image: %v", err)
			return
		}
		if shrunk, err := imagegen.Shrink(data, h.imageMaxDim); err != nil {
			log.Printf("Error resizing image, sending original: %v", err)
		} else {
			data = shrunk
		}
		if _, err := s.ChannelFileSend(channelID, "image.png", bytes.NewReader(data)); err != nil {
			log.Printf("Error sending image file: %v", err)
		}
	}
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
