package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"

	"nekochat/pkg/bot"
	"nekochat/pkg/cache"
	"nekochat/pkg/config"
	"nekochat/pkg/emotion"
	"nekochat/pkg/imagegen"
	"nekochat/pkg/llm"
	"nekochat/pkg/store"
	"nekochat/pkg/surreal"
	"nekochat/pkg/voice"
)

func main() {
	// Load config.yml
	cfg, err := config.LoadConfig("config.yml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load .env for secrets
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	token := os.Getenv("DISCORD_TOKEN")
	openaiKeys := os.Getenv("OPENAI_API_KEYS")
	if openaiKeys == "" {
		openaiKeys = os.Getenv("OPENAI_API_KEY")
	}

	if token == "" {
		log.Fatal("Missing required environment variable: DISCORD_TOKEN")
	}
	if openaiKeys == "" {
		log.Fatal("Missing required environment variable: OPENAI_API_KEY")
	}

	// Completion client with key rotation and model fallback
	llmClient := llm.NewClient(openaiKeys, cfg.ModelSettings.Temperature, cfg.ModelSettings.TopP, nil)
	analyzer := emotion.NewAnalyzer(llmClient)

	st := buildStore()

	// Voice and image synthesis are optional: without keys the bot
	// still chats, the toggles just deliver nothing.
	var voiceClient bot.VoiceClient
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		voiceClient = voice.NewClient(key, cfg.Voice.VoiceID, cfg.Voice.Model)
		log.Println("Voice synthesis enabled")
	} else {
		log.Println("ELEVENLABS_API_KEY not set, voice replies disabled")
	}

	var imageClient bot.ImageClient
	if key := os.Getenv("STABILITY_API_KEY"); key != "" {
		imageClient = imagegen.NewClient(key, cfg.Image.Engine)
		log.Println("Image synthesis enabled")
	} else {
		log.Println("STABILITY_API_KEY not set, image replies disabled")
	}

	character := bot.LoadCharacter(cfg.CharacterFile)
	log.Printf("Loaded character: %s", character.Name)

	handler := bot.NewHandler(
		llmClient,
		analyzer,
		voiceClient,
		imageClient,
		st,
		character,
		cfg.Chat.HistoryLimit,
		time.Duration(cfg.Chat.RequestTimeout*float64(time.Second)),
		cfg.Image.PromptPrefix,
		cfg.Image.MaxDimension,
	)

	// Create Discord Session
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Fatalf("Error creating Discord session: %v", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	// Register Handlers
	dg.AddHandler(handler.MessageCreate)
	dg.AddHandler(handler.InteractionCreate)

	// Open Connection
	if err := dg.Open(); err != nil {
		log.Fatalf("Error opening connection: %v", err)
	}

	// Set Bot ID in handler (so it can ignore itself)
	handler.SetBotID(dg.State.User.ID)

	// Register slash commands (empty string = global, or specify guild ID for faster testing)
	guildID := os.Getenv("DISCORD_GUILD_ID")
	registeredCommands, err := bot.RegisterSlashCommands(dg, guildID)
	if err != nil {
		log.Fatalf("Error registering slash commands: %v", err)
	}

	defer func() {
		if err := bot.UnregisterSlashCommands(dg, guildID, registeredCommands); err != nil {
			log.Printf("Error unregistering slash commands: %v", err)
		}
	}()

	log.Printf("%s is now running. Press CTRL-C to exit.", character.Name)

	// Wait for signal
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	// Let in-flight voice and image deliveries finish before closing.
	handler.Wait()
	dg.Close()
}

// buildStore wires the persistence stack: SurrealDB when configured,
// with an optional Redis read-through cache in front, an in-memory
// store otherwise.
func buildStore() store.Store {
	surrealHost := os.Getenv("SURREAL_DB_HOST")
	if surrealHost == "" {
		log.Println("SURREAL_DB_HOST not set, using in-memory store (history is lost on restart)")
		return store.NewMemStore()
	}

	surrealUser := os.Getenv("SURREAL_DB_USER")
	surrealPass := os.Getenv("SURREAL_DB_PASS")
	surrealNS := os.Getenv("SURREAL_DB_NAMESPACE")
	surrealDB := os.Getenv("SURREAL_DB_DATABASE")

	if surrealUser == "" {
		log.Fatal("Missing required environment variable: SURREAL_DB_USER")
	}
	if surrealPass == "" {
		log.Fatal("Missing required environment variable: SURREAL_DB_PASS")
	}
	if surrealNS == "" {
		surrealNS = "nekochat"
	}
	if surrealDB == "" {
		surrealDB = "chat"
	}

	// Add protocol if missing
	if !strings.HasPrefix(surrealHost, "ws://") && !strings.HasPrefix(surrealHost, "wss://") {
		surrealHost = "wss://" + surrealHost + "/rpc"
	}

	log.Printf("Connecting to SurrealDB at %s (NS: %s, DB: %s)", surrealHost, surrealNS, surrealDB)
	surrealClient, err := surreal.NewClient(surrealHost, surrealUser, surrealPass, surrealNS, surrealDB)
	if err != nil {
		log.Fatalf("Failed to connect to SurrealDB: %v", err)
	}

	surrealStore := store.NewSurrealStore(surrealClient)
	if err := surrealStore.Init(); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Println("REDIS_URL not set, running without cache")
		return surrealStore
	}

	redisCache, err := cache.NewRedisCache(redisURL, "nekochat")
	if err != nil {
		log.Printf("Failed to connect to Redis, running without cache: %v", err)
		return surrealStore
	}
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Printf("Redis not reachable, running without cache: %v", err)
		return surrealStore
	}

	log.Println("Redis cache enabled")
	return store.NewCachedStore(surrealStore, redisCache)
}
