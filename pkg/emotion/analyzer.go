package emotion

import (
	"context"
	"fmt"
	"log"

	"nekochat/pkg/llm"
)

// Judgment is the full emotion read for one inbound message.
type Judgment struct {
	Sentiment         string
	SentimentScore    float64
	DominantEmotion   string
	Intensity         int
	SecondaryEmotions []string
	SuggestedResponse string
}

// modelJudgment is the schema the model must fill.
type modelJudgment struct {
	DominantEmotion   string   `json:"dominant_emotion"`
	Intensity         int      `json:"intensity"`
	SecondaryEmotions []string `json:"secondary_emotions"`
	SuggestedResponse string   `json:"suggested_response"`
}

var judgmentSchema = llm.GenerateSchema[modelJudgment]()

const classifyInstructions = `分析用户文本中的情绪，返回包含以下字段的JSON：
- dominant_emotion: 主要情绪（从以下选项中选择：positive, negative, neutral, angry, sad, happy, love, anxiety）
- intensity: 情绪强度（1-5的整数）
- secondary_emotions: 次要情绪列表
- suggested_response: 建议的回应方式`

const fallbackSuggestion = "保持友好和关心"

// StructuredClient is the slice of the completion client the analyzer
// needs.
type StructuredClient interface {
	Structured(ctx context.Context, instructions, input, schemaName string, schema map[string]interface{}) (string, error)
}

type Analyzer struct {
	client StructuredClient
}

func NewAnalyzer(client StructuredClient) *Analyzer {
	return &Analyzer{client: client}
}

// Classify never fails: any model or parse problem degrades to the
// neutral fallback so a classification hiccup can't break a chat.
func (a *Analyzer) Classify(ctx context.Context, text string) Judgment {
	label, score := Sentiment(text)

	j := Judgment{
		Sentiment:         label,
		SentimentScore:    score,
		DominantEmotion:   "neutral",
		Intensity:         3,
		SecondaryEmotions: []string{},
		SuggestedResponse: fallbackSuggestion,
	}

	if a.client == nil {
		return j
	}

	out, err := a.client.Structured(ctx, classifyInstructions, fmt.Sprintf("文本：%s", text), "EmotionJudgment", judgmentSchema)
	if err != nil {
		log.Printf("情绪分析出错：%v", err)
		return j
	}

	var mj modelJudgment
	if err := llm.DecodeModelJSON(out, &mj); err != nil {
		log.Printf("情绪分析解析失败：%v", err)
		return j
	}

	if mj.DominantEmotion == "" || mj.Intensity < 1 || mj.Intensity > 5 {
		log.Printf("情绪分析结果无效：emotion=%q intensity=%d", mj.DominantEmotion, mj.Intensity)
		return j
	}

	j.DominantEmotion = mj.DominantEmotion
	j.Intensity = mj.Intensity
	if mj.SecondaryEmotions != nil {
		j.SecondaryEmotions = mj.SecondaryEmotions
	}
	if mj.SuggestedResponse != "" {
		j.SuggestedResponse = mj.SuggestedResponse
	}
	return j
}
