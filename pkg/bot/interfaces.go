package bot

import (
	"context"
	"io"

	"github.com/bwmarrin/discordgo"

	"nekochat/pkg/emotion"
	"nekochat/pkg/llm"
)

// Session is the slice of discordgo.Session the handler uses.
// *discordgo.Session satisfies it directly.
type Session interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) (err error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

type CompletionClient interface {
	ChatCompletion(ctx context.Context, messages []llm.Message) (string, error)
}

type EmotionClassifier interface {
	Classify(ctx context.Context, text string) emotion.Judgment
}

type VoiceClient interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type ImageClient interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}
