package bot

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nekochat/pkg/emotion"
	"nekochat/pkg/llm"
	"nekochat/pkg/store"
)

// MockSession implements Session for testing
type MockSession struct {
	mu           sync.Mutex
	SentMessages []string
	SentFiles    []string
	Interactions []string
	TypingCalls  int
	ChannelType  discordgo.ChannelType
}

func (m *MockSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, content)
	return &discordgo.Message{ID: "mock_msg_id", ChannelID: channelID, Content: content}, nil
}

func (m *MockSession) ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentFiles = append(m.SentFiles, name)
	return &discordgo.Message{ID: "mock_file_id", ChannelID: channelID}, nil
}

func (m *MockSession) ChannelTyping(channelID string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TypingCalls++
	return nil
}

func (m *MockSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	channelType := m.ChannelType
	if channelType == 0 {
		channelType = discordgo.ChannelTypeGuildText
	}
	return &discordgo.Channel{ID: channelID, Type: channelType}, nil
}

func (m *MockSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Interactions = append(m.Interactions, resp.Data.Content)
	return nil
}

type mockCompletion struct {
	reply    string
	err      error
	messages []llm.Message
}

func (m *mockCompletion) ChatCompletion(ctx context.Context, messages []llm.Message) (string, error) {
	m.messages = messages
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

type mockClassifier struct {
	judgment emotion.Judgment
}

func (m *mockClassifier) Classify(ctx context.Context, text string) emotion.Judgment {
	return m.judgment
}

type mockVoice struct {
	audio []byte
	err   error
	calls int
}

func (m *mockVoice) Synthesize(ctx context.Context, text string) ([]byte, error) {
	m.calls++
	return m.audio, m.err
}

type mockImage struct {
	data  []byte
	err   error
	calls int
}

func (m *mockImage) Generate(ctx context.Context, prompt string) ([]byte, error) {
	m.calls++
	return m.data, m.err
}

func newTestHandler(completion *mockCompletion, voice *mockVoice, image *mockImage) (*Handler, *store.MemStore) {
	st := store.NewMemStore()
	classifier := &mockClassifier{judgment: emotion.Judgment{
		Sentiment:       "positive",
		DominantEmotion: "positive",
		Intensity:       3,
	}}
	h := NewHandler(completion, classifier, voice, image, st, DefaultCharacter, 10, 5*time.Second, "cute anime cat girl: ", 512)
	h.SetBotID("bot_id")
	return h, st
}

func incomingMessage(userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg_1",
			ChannelID: "chan_1",
			Content:   content,
			Author:    &discordgo.User{ID: userID, Username: "testuser"},
		},
	}
}

func TestHandleMessage_DMReply(t *testing.T) {
	completion := &mockCompletion{reply: "好的主人喵~"}
	h, st := newTestHandler(completion, nil, nil)

	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}
	h.HandleMessage(session, incomingMessage("user_1", "今天真开心"))
	h.Wait()

	require.Len(t, session.SentMessages, 1)
	reply := session.SentMessages[0]

	// Emotion prefix, blank line, completion text.
	parts := strings.SplitN(reply, "\n\n", 2)
	require.Len(t, parts, 2)
	assert.Equal(t, emotion.ResponseFor("positive", 3), parts[0])
	assert.Equal(t, "好的主人喵~", parts[1])

	assert.Equal(t, 1, session.TypingCalls)

	// Both turns persisted, most recent first.
	history, err := st.GetRecentMessages(context.Background(), "user_1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "assistant", history[0].Role)
	assert.Equal(t, reply, history[0].Text)
	assert.Equal(t, "user", history[1].Role)
	assert.Equal(t, "今天真开心", history[1].Text)

	// Interests were learned from the message.
	interests, err := st.GetInterests(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, 1, interests.Keywords["今天真开心"])

	// Prompt order: persona system first, user message last.
	require.NotEmpty(t, completion.messages)
	assert.Equal(t, "system", completion.messages[0].Role)
	assert.Contains(t, completion.messages[0].Content, DefaultCharacter.Name)
	last := completion.messages[len(completion.messages)-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "今天真开心", last.Content)
}

func TestHandleMessage_HistoryOldestFirstInPrompt(t *testing.T) {
	completion := &mockCompletion{reply: "记得哦喵~"}
	h, st := newTestHandler(completion, nil, nil)

	ctx := context.Background()
	require.NoError(t, st.AppendMessage(ctx, "user_1", "第一句", "user"))
	require.NoError(t, st.AppendMessage(ctx, "user_1", "第一句的回复", "assistant"))

	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}
	h.HandleMessage(session, incomingMessage("user_1", "第二句"))
	h.Wait()

	var contents []string
	for _, msg := range completion.messages {
		if msg.Role != "system" {
			contents = append(contents, msg.Content)
		}
	}
	assert.Equal(t, []string{"第一句", "第一句的回复", "第二句"}, contents)
}

func TestHandleMessage_CompletionFailure(t *testing.T) {
	completion := &mockCompletion{err: errors.New("all models exhausted")}
	h, st := newTestHandler(completion, nil, nil)

	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}
	h.HandleMessage(session, incomingMessage("user_1", "你好"))
	h.Wait()

	require.Len(t, session.SentMessages, 1)
	assert.Equal(t, apologyReply, session.SentMessages[0])

	// Nothing persisted when the completion failed.
	history, err := st.GetRecentMessages(context.Background(), "user_1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHandleMessage_VoiceDelivery(t *testing.T) {
	completion := &mockCompletion{reply: "喵~"}
	voice := &mockVoice{audio: []byte("mp3-bytes")}
	h, st := newTestHandler(completion, voice, nil)

	enabled := true
	require.NoError(t, st.UpsertPreferences(context.Background(), "user_1",
		store.PreferencesPatch{VoiceEnabled: &enabled}))

	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}
	h.HandleMessage(session, incomingMessage("user_1", "说句话"))
	h.Wait()

	assert.Equal(t, 1, voice.calls)
	assert.Equal(t, []string{"response.mp3"}, session.SentFiles)
}

func TestHandleMessage_VoiceFailureKeepsTextReply(t *testing.T) {
	completion := &mockCompletion{reply: "喵~"}
	voice := &mockVoice{err: errors.New("synthesis down")}
	h, st := newTestHandler(completion, voice, nil)

	enabled := true
	require.NoError(t, st.UpsertPreferences(context.Background(), "user_1",
		store.PreferencesPatch{VoiceEnabled: &enabled}))

	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}
	h.HandleMessage(session, incomingMessage("user_1", "说句话"))
	h.Wait()

	require.Len(t, session.SentMessages, 1)
	assert.NotEqual(t, apologyReply, session.SentMessages[0])
	assert.Empty(t, session.SentFiles)
}

func TestHandleMessage_ImageDeliveryUsesPrefixedPrompt(t *testing.T) {
	completion := &mockCompletion{reply: "喵~"}
	image := &mockImage{err: errors.New("skip decode")}
	var seenPrompt string
	h, st := newTestHandler(completion, nil, nil)
	h.image = promptRecorder{image: image, prompt: &seenPrompt}

	enabled := true
	require.NoError(t, st.UpsertPreferences(context.Background(), "user_1",
		store.PreferencesPatch{ImageEnabled: &enabled}))

	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}
	h.HandleMessage(session, incomingMessage("user_1", "画一张图"))
	h.Wait()

	assert.True(t, strings.HasPrefix(seenPrompt, "cute anime cat girl: "))
	assert.Empty(t, session.SentFiles)
}

type promptRecorder struct {
	image  *mockImage
	prompt *string
}

func (p promptRecorder) Generate(ctx context.Context, prompt string) ([]byte, error) {
	*p.prompt = prompt
	return p.image.Generate(ctx, prompt)
}

func TestHandleMessage_IgnoresGuildMessageWithoutMention(t *testing.T) {
	completion := &mockCompletion{reply: "喵~"}
	h, _ := newTestHandler(completion, nil, nil)

	session := &MockSession{ChannelType: discordgo.ChannelTypeGuildText}
	h.HandleMessage(session, incomingMessage("user_1", "随便聊聊"))
	h.Wait()

	assert.Empty(t, session.SentMessages)
}

func TestHandleMessage_GuildMentionStripped(t *testing.T) {
	completion := &mockCompletion{reply: "喵~"}
	h, _ := newTestHandler(completion, nil, nil)

	m := incomingMessage("user_1", "<@bot_id> 你好")
	m.Mentions = []*discordgo.User{{ID: "bot_id"}}

	session := &MockSession{ChannelType: discordgo.ChannelTypeGuildText}
	h.HandleMessage(session, m)
	h.Wait()

	require.Len(t, session.SentMessages, 1)
	last := completion.messages[len(completion.messages)-1]
	assert.Equal(t, "你好", last.Content)
}

func TestHandleMessage_IgnoresBots(t *testing.T) {
	completion := &mockCompletion{reply: "喵~"}
	h, _ := newTestHandler(completion, nil, nil)

	m := incomingMessage("other_bot", "beep")
	m.Author.Bot = true

	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}
	h.HandleMessage(session, m)
	h.Wait()

	assert.Empty(t, session.SentMessages)
}

func slashInteraction(name, userID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{Name: name},
			User: &discordgo.User{ID: userID, Username: "testuser"},
		},
	}
}

func TestVoiceCommand_TogglesAndKeepsOtherFields(t *testing.T) {
	h, st := newTestHandler(&mockCompletion{reply: "喵~"}, nil, nil)

	enabled := true
	personality := "傲娇"
	require.NoError(t, st.UpsertPreferences(context.Background(), "user_1",
		store.PreferencesPatch{ImageEnabled: &enabled, Personality: &personality}))

	session := &MockSession{}
	handleVoiceCommand(h, session, slashInteraction("voice", "user_1"))

	require.Equal(t, []string{"语音功能已开启"}, session.Interactions)

	prefs, found, err := st.GetPreferences(context.Background(), "user_1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, prefs.VoiceEnabled)
	assert.True(t, prefs.ImageEnabled)
	assert.Equal(t, "傲娇", prefs.Personality)

	handleVoiceCommand(h, session, slashInteraction("voice", "user_1"))
	assert.Equal(t, "语音功能已关闭", session.Interactions[1])
}

func TestSettingsCommand(t *testing.T) {
	h, st := newTestHandler(&mockCompletion{reply: "喵~"}, nil, nil)
	session := &MockSession{}

	handleSettingsCommand(h, session, slashInteraction("settings", "user_1"))
	require.Equal(t, []string{"当前使用默认设置"}, session.Interactions)

	enabled := true
	require.NoError(t, st.UpsertPreferences(context.Background(), "user_1",
		store.PreferencesPatch{VoiceEnabled: &enabled}))

	handleSettingsCommand(h, session, slashInteraction("settings", "user_1"))
	got := session.Interactions[1]
	assert.Contains(t, got, "语音功能：开启")
	assert.Contains(t, got, "图片功能：关闭")
	assert.Contains(t, got, "性格设定：默认")
}

func TestProfileCommand(t *testing.T) {
	h, st := newTestHandler(&mockCompletion{reply: "喵~"}, nil, nil)

	ctx := context.Background()
	interests := store.NewInterests()
	interests.Keywords["音乐"] = 3
	require.NoError(t, st.PutInterests(ctx, "user_1", interests))

	session := &MockSession{}
	handleProfileCommand(h, session, slashInteraction("profile", "user_1"))

	require.Len(t, session.Interactions, 1)
	assert.Contains(t, session.Interactions[0], "主人，这是我对你的了解喵~")
	assert.Contains(t, session.Interactions[0], "音乐")
}

func TestHelloCommand_CreatesUser(t *testing.T) {
	h, st := newTestHandler(&mockCompletion{reply: "喵~"}, nil, nil)
	session := &MockSession{}

	handleHelloCommand(h, session, slashInteraction("hello", "user_1"))

	require.Len(t, session.Interactions, 1)
	assert.Contains(t, session.Interactions[0], "欢迎回来主人喵~")

	u, err := st.GetUser(context.Background(), "user_1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "testuser", u.Username)
}
