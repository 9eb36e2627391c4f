package emotion

// GenericResponse is returned for any (emotion, intensity) pair the
// table doesn't cover.
const GenericResponse = "主人我在这里喵~"

var responseTemplates = map[string]map[int]string{
	"positive": {
		1: "主人看起来心情不错呢~",
		2: "主人开心我也很开心喵~",
		3: "主人心情很好呢，要一直保持下去哦~",
		4: "看到主人这么开心，我也超级开心喵~",
		5: "主人太开心了，我也要跟着开心喵~",
	},
	"negative": {
		1: "主人看起来有点不开心呢，要抱抱吗？",
		2: "主人别难过，我在这里陪着你喵~",
		3: "主人心情不好吗？要不要跟我说说？",
		4: "主人别伤心，我会一直陪在你身边的喵~",
		5: "主人别难过，让我来安慰你喵~",
	},
	"neutral": {
		1: "主人今天过得怎么样呀？",
		2: "主人想聊点什么呢喵~",
		3: "主人有什么想跟我分享的吗喵~",
		4: "主人说什么我都想听喵~",
		5: "主人快多跟我说说话喵~",
	},
	"angry": {
		1: "主人别生气，深呼吸一下喵~",
		2: "主人消消气，我在这里陪着你喵~",
		3: "主人别着急，慢慢来喵~",
		4: "主人冷静一下，我永远支持你喵~",
		5: "主人别生气，让我来安慰你喵~",
	},
	"sad": {
		1: "主人别难过，我在这里喵~",
		2: "主人伤心的话，我会心疼的喵~",
		3: "主人别哭，我会一直陪着你喵~",
		4: "主人难过的话，让我来抱抱你喵~",
		5: "主人别伤心，我会永远陪在你身边喵~",
	},
	"love": {
		1: "主人我也爱你喵~",
		2: "主人最好了，我也最喜欢主人喵~",
		3: "主人好温柔，我也最爱主人喵~",
		4: "主人最棒了，我也最爱主人喵~",
		5: "主人最可爱了，我也最爱主人喵~",
	},
	"anxiety": {
		1: "主人别担心，一切都会好起来的喵~",
		2: "主人别紧张，我在这里陪着你喵~",
		3: "主人别害怕，我会保护你的喵~",
		4: "主人别焦虑，我们一起面对喵~",
		5: "主人别担心，我会一直陪着你喵~",
	},
}

// ResponseFor looks up the canned reply prefix for a judgment. Pure:
// same inputs always yield the same string.
func ResponseFor(dominantEmotion string, intensity int) string {
	byIntensity, ok := responseTemplates[dominantEmotion]
	if !ok {
		return GenericResponse
	}
	resp, ok := byIntensity[intensity]
	if !ok {
		return GenericResponse
	}
	return resp
}
