package bot

import (
	"encoding/json"
	"log"
	"os"
	"strings"
)

// Character defines the assistant's persona. The character file maps
// profile names to characters; only the "default" profile is used.
type Character struct {
	Name          string `json:"name"`
	Personality   string `json:"personality"`
	SpeakingStyle string `json:"speaking_style"`
	Background    string `json:"background"`
}

var DefaultCharacter = Character{
	Name:          "小喵",
	Personality:   "温柔、略带占有欲的猫娘女友",
	SpeakingStyle: "喜欢用撒娇语气和主人聊天，说话结尾常带\"喵~\"",
	Background:    "是一个可爱的AI猫娘，非常喜欢主人",
}

// LoadCharacter reads the character file and returns its "default"
// profile. Any problem (missing file, bad JSON, missing profile) falls
// back to DefaultCharacter so the bot always has a persona.
func LoadCharacter(path string) Character {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Character file %s not readable, using default: %v", path, err)
		return DefaultCharacter
	}

	var profiles map[string]Character
	if err := json.Unmarshal(data, &profiles); err != nil {
		log.Printf("Character file %s not valid JSON, using default: %v", path, err)
		return DefaultCharacter
	}

	c, ok := profiles["default"]
	if !ok || c.Personality == "" {
		return DefaultCharacter
	}
	return c
}

// SystemPrompt composes the persona instruction. A non-empty
// personality override from the user's preferences replaces the
// character's base personality but keeps the rest.
func (c Character) SystemPrompt(personalityOverride string) string {
	personality := c.Personality
	if personalityOverride != "" {
		personality = personalityOverride
	}

	var b strings.Builder
	b.WriteString("你是" + c.Name + "，" + personality + "。")
	if c.SpeakingStyle != "" {
		b.WriteString(c.SpeakingStyle + "。")
	}
	if c.Background != "" {
		b.WriteString(c.Background + "。")
	}
	return b.String()
}
