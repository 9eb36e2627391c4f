package emotion

import "strings"

// Word lists for the coarse sentiment pass. Chinese keywords are
// matched as substrings since the text carries no word boundaries.
var sentimentLexicon = map[string][]string{
	"positive": {"开心", "快乐", "喜欢", "爱", "好", "棒", "优秀", "完美", "高兴", "喜悦", "幸福", "甜蜜", "心动"},
	"negative": {"难过", "伤心", "讨厌", "恨", "坏", "差", "糟糕", "失败", "生气", "愤怒", "恼火", "烦躁", "悲伤", "痛苦", "寂寞", "焦虑", "担心", "害怕", "紧张", "不安"},
}

// Sentiment classifies text into positive, negative or neutral with a
// confidence in (0,1]. Ties and no-hit inputs are neutral.
func Sentiment(text string) (string, float64) {
	var pos, neg int
	for _, w := range sentimentLexicon["positive"] {
		pos += strings.Count(text, w)
	}
	for _, w := range sentimentLexicon["negative"] {
		neg += strings.Count(text, w)
	}

	total := pos + neg
	if total == 0 || pos == neg {
		return "neutral", 0.5
	}
	if pos > neg {
		return "positive", float64(pos) / float64(total)
	}
	return "negative", float64(neg) / float64(total)
}
