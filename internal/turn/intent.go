package turn

import "strings"

// Direct image-intent detection. When the user plainly asks for a
// picture, the turn skips the model entirely and emits an image command
// with the extracted subject as its prompt.

var intentTriggers = []string{
	"画一张", "画一幅", "画个", "画张", "画",
	"生成一张", "生成图片", "生成",
	"来一张",
	"draw", "paint", "generate an image", "generate a picture",
}

var intentNouns = []string{
	"图片", "照片", "壁纸", "图", "画",
	"picture", "image", "photo", "wallpaper", "drawing",
}

var intentNegations = []string{
	"不用", "不要", "别", "先不", "暂时不",
	"don't", "do not", "no need",
}

var promptLeadPrefixes = []string{
	"帮我", "给我", "请你", "请", "你能", "能不能", "麻烦",
	"me ", "a ", "an ",
}

var promptMeasures = []string{
	"一张", "一幅", "一个", "张", "幅",
}

var promptNounOfPrefixes = []string{
	"picture of ", "image of ", "photo of ", "drawing of ", "wallpaper of ",
}

var promptTrailSuffixes = []string{
	"的图片", "的照片", "的壁纸", "的图", "图片", "照片", "壁纸",
	"吧", "呗", "好吗", "可以吗", "嘛", "呀", "啊",
	" for me", " please",
}

// detectImageIntent reports whether text is a direct request for an
// image and extracts the subject to use as the generation prompt.
// "帮我画一张夕阳的图片" yields ("夕阳", true).
func detectImageIntent(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return "", false
	}
	for _, neg := range intentNegations {
		if strings.Contains(lower, neg) {
			return "", false
		}
	}

	trigger, triggerIdx := "", -1
	for _, t := range intentTriggers {
		if idx := strings.Index(lower, t); idx >= 0 {
			trigger, triggerIdx = t, idx
			break
		}
	}
	if triggerIdx < 0 {
		return "", false
	}

	hasNoun := false
	for _, n := range intentNouns {
		if strings.Contains(lower, n) {
			hasNoun = true
			break
		}
	}
	if !hasNoun {
		return "", false
	}

	subject := extractSubject(lower, triggerIdx+len(trigger))
	if subject == "" {
		return "", false
	}
	return subject, true
}

func extractSubject(lower string, after int) string {
	s := strings.TrimSpace(lower[after:])

	for changed := true; changed; {
		changed = false
		for _, p := range promptLeadPrefixes {
			if strings.HasPrefix(s, p) {
				s = strings.TrimSpace(s[len(p):])
				changed = true
			}
		}
		for _, m := range promptMeasures {
			if strings.HasPrefix(s, m) {
				s = strings.TrimSpace(s[len(m):])
				changed = true
			}
		}
		for _, p := range promptNounOfPrefixes {
			if strings.HasPrefix(s, p) {
				s = strings.TrimSpace(s[len(p):])
				changed = true
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for _, suf := range promptTrailSuffixes {
			if strings.HasSuffix(s, suf) {
				s = strings.TrimSpace(s[:len(s)-len(suf)])
				changed = true
			}
		}
	}
	if strings.HasPrefix(s, "of ") {
		s = strings.TrimSpace(s[3:])
	}
	return strings.Trim(s, "。，！？!?,. ")
}
