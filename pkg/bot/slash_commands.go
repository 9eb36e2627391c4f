package bot

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"nekochat/pkg/store"
)

// SlashCommands defines all available slash commands
var SlashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "hello",
		Description: "跟小喵打个招呼，开始聊天",
	},
	{
		Name:        "voice",
		Description: "开启或关闭语音回复",
	},
	{
		Name:        "image",
		Description: "开启或关闭图片回复",
	},
	{
		Name:        "settings",
		Description: "查看当前设置",
	},
	{
		Name:        "profile",
		Description: "查看小喵对你的了解",
	},
}

// SlashCommandHandlers maps command names to their handler functions
var SlashCommandHandlers = map[string]func(h *Handler, s Session, i *discordgo.InteractionCreate){
	"hello":    handleHelloCommand,
	"voice":    handleVoiceCommand,
	"image":    handleImageCommand,
	"settings": handleSettingsCommand,
	"profile":  handleProfileCommand,
}

func handleHelloCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, userName, err := getUserFromInteraction(i)
	if err != nil {
		log.Printf("Error handling hello command: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
	defer cancel()

	if err := h.store.UpsertUser(ctx, store.User{ID: userID, Username: userName}); err != nil {
		log.Printf("Error upserting user %s: %v", userID, err)
	}

	respond(s, i, "欢迎回来主人喵~ 快跟我说话吧~\n你可以用斜杠命令来调整设置哦~", false)
}

func handleVoiceCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	toggleDelivery(h, s, i, "语音", func(p store.Preferences) (store.PreferencesPatch, bool) {
		enabled := !p.VoiceEnabled
		return store.PreferencesPatch{VoiceEnabled: &enabled}, enabled
	})
}

func handleImageCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	toggleDelivery(h, s, i, "图片", func(p store.Preferences) (store.PreferencesPatch, bool) {
		enabled := !p.ImageEnabled
		return store.PreferencesPatch{ImageEnabled: &enabled}, enabled
	})
}

// toggleDelivery flips one delivery toggle and reports the new state.
// The patch touches only the flipped field, so the other toggle and
// the personality override keep their values.
func toggleDelivery(h *Handler, s Session, i *discordgo.InteractionCreate, label string, flip func(store.Preferences) (store.PreferencesPatch, bool)) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		log.Printf("Error handling %s command: %v", label, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
	defer cancel()

	prefs, _, err := h.store.GetPreferences(ctx, userID)
	if err != nil {
		log.Printf("Error getting preferences for %s: %v", userID, err)
		respond(s, i, apologyReply, true)
		return
	}

	patch, enabled := flip(prefs)
	if err := h.store.UpsertPreferences(ctx, userID, patch); err != nil {
		log.Printf("Error updating preferences for %s: %v", userID, err)
		respond(s, i, apologyReply, true)
		return
	}

	state := "关闭"
	if enabled {
		state = "开启"
	}
	respond(s, i, fmt.Sprintf("%s功能已%s", label, state), true)
}

func handleSettingsCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		log.Printf("Error handling settings command: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
	defer cancel()

	prefs, found, err := h.store.GetPreferences(ctx, userID)
	if err != nil {
		log.Printf("Error getting preferences for %s: %v", userID, err)
		respond(s, i, apologyReply, true)
		return
	}

	if !found {
		respond(s, i, "当前使用默认设置", true)
		return
	}

	onOff := func(b bool) string {
		if b {
			return "开启"
		}
		return "关闭"
	}
	personality := prefs.Personality
	if personality == "" {
		personality = "默认"
	}
	respond(s, i, fmt.Sprintf("当前设置：\n语音功能：%s\n图片功能：%s\n性格设定：%s",
		onOff(prefs.VoiceEnabled), onOff(prefs.ImageEnabled), personality), true)
}

func handleProfileCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		log.Printf("Error handling profile command: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.requestTimeout)
	defer cancel()

	summary, err := h.learner.Summary(ctx, userID)
	if err != nil {
		log.Printf("Error building profile summary for %s: %v", userID, err)
		respond(s, i, apologyReply, true)
		return
	}

	respond(s, i, summary, false)
}

func respond(s Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}

// getUserFromInteraction extracts the user ID and display name from an
// interaction, handling both guild (Member) and DM (User) contexts.
func getUserFromInteraction(i *discordgo.InteractionCreate) (string, string, error) {
	if i.Member != nil {
		userName := i.Member.User.Username
		if i.Member.User.GlobalName != "" {
			userName = i.Member.User.GlobalName
		}
		return i.Member.User.ID, userName, nil
	}

	if i.User != nil {
		userName := i.User.Username
		if i.User.GlobalName != "" {
			userName = i.User.GlobalName
		}
		return i.User.ID, userName, nil
	}

	return "", "", fmt.Errorf("could not determine user from interaction")
}

// InteractionCreate handles all slash command interactions
func (h *Handler) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	commandName := i.ApplicationCommandData().Name
	if handler, ok := SlashCommandHandlers[commandName]; ok {
		handler(h, s, i)
	} else {
		log.Printf("Unknown slash command: %s", commandName)
	}
}

// RegisterSlashCommands registers all slash commands with Discord
func RegisterSlashCommands(s *discordgo.Session, guildID string) ([]*discordgo.ApplicationCommand, error) {
	log.Println("Registering slash commands...")

	registeredCommands := make([]*discordgo.ApplicationCommand, len(SlashCommands))

	for i, cmd := range SlashCommands {
		// Register globally (guildID = "") or for a specific guild
		registeredCmd, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, cmd)
		if err != nil {
			log.Printf("Cannot create '%s' command: %v", cmd.Name, err)
			return nil, err
		}
		registeredCommands[i] = registeredCmd
		log.Printf("Registered command: %s", cmd.Name)
	}

	return registeredCommands, nil
}

// UnregisterSlashCommands removes all registered slash commands
func UnregisterSlashCommands(s *discordgo.Session, guildID string, commands []*discordgo.ApplicationCommand) error {
	log.Println("Unregistering slash commands...")

	for _, cmd := range commands {
		err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID)
		if err != nil {
			log.Printf("Cannot delete '%s' command: %v", cmd.Name, err)
			return err
		}
		log.Printf("Unregistered command: %s", cmd.Name)
	}

	return nil
}
