package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Provide a path that definitely doesn't exist
	config, err := LoadConfig("non_existent_config.yml")
	require.NoError(t, err)

	// Verify default values
	assert.Equal(t, 1.0, config.ModelSettings.Temperature)
	assert.Equal(t, 1.0, config.ModelSettings.TopP)
	assert.Equal(t, 10, config.Chat.HistoryLimit)
	assert.Equal(t, 30.0, config.Chat.RequestTimeout)
	assert.Equal(t, "eleven_multilingual_v2", config.Voice.Model)
	assert.Equal(t, "stable-diffusion-xl-1024-v1-0", config.Image.Engine)
	assert.Equal(t, 512, config.Image.MaxDimension)
	assert.Equal(t, "character.json", config.CharacterFile)
}

func TestLoadConfig_ValidFile(t *testing.T) {
	// Create a temporary config file
	content := []byte(`
model_settings:
  temperature: 0.7
  top_p: 0.9
chat:
  history_limit: 20
  request_timeout_seconds: 15
voice:
  voice_id: abc123
  model: eleven_turbo_v2
image:
  engine: sd3-large
  prompt_prefix: "portrait of a cat maid: "
  max_dimension: 768
character_file: waifu.json
`)
	tmpfile, err := os.CreateTemp("", "config_test_*.yml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name()) // clean up

	if _, err := tmpfile.Write(content); err != nil {
		tmpfile.Close()
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	// Load the config
	config, err := LoadConfig(tmpfile.Name())
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, 0.7, config.ModelSettings.Temperature)
	assert.Equal(t, 0.9, config.ModelSettings.TopP)
	assert.Equal(t, 20, config.Chat.HistoryLimit)
	assert.Equal(t, 15.0, config.Chat.RequestTimeout)
	assert.Equal(t, "abc123", config.Voice.VoiceID)
	assert.Equal(t, "sd3-large", config.Image.Engine)
	assert.Equal(t, "portrait of a cat maid: ", config.Image.PromptPrefix)
	assert.Equal(t, 768, config.Image.MaxDimension)
	assert.Equal(t, "waifu.json", config.CharacterFile)
}

func TestLoadConfig_PartialFileGetsDefaults(t *testing.T) {
	content := []byte(`
model_settings:
  temperature: 0.5
`)
	tmpfile, err := os.CreateTemp("", "config_test_*.yml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.Write(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	config, err := LoadConfig(tmpfile.Name())
	require.NoError(t, err)

	assert.Equal(t, 0.5, config.ModelSettings.Temperature)
	assert.Equal(t, 1.0, config.ModelSettings.TopP)
	assert.Equal(t, 10, config.Chat.HistoryLimit)
	assert.Equal(t, 30.0, config.Chat.RequestTimeout)
	assert.Equal(t, "character.json", config.CharacterFile)
}

func TestLoadConfig_MissingModelSettingsGetsDefaults(t *testing.T) {
	content := []byte(`
chat:
  history_limit: 5
`)
	tmpfile, err := os.CreateTemp("", "config_test_*.yml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.Write(content)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	config, err := LoadConfig(tmpfile.Name())
	require.NoError(t, err)

	// An omitted model_settings block must not mean greedy sampling.
	assert.Equal(t, 1.0, config.ModelSettings.Temperature)
	assert.Equal(t, 1.0, config.ModelSettings.TopP)
	assert.Equal(t, 5, config.Chat.HistoryLimit)
}
