// Package parser extracts control tags from raw model output: emotion,
// gesture, anniversary declarations, image-generation commands, and the
// clean display text.
//
// Parse is total: it never fails. Worst case it returns the whole input as
// clean text with default emotion and gesture and no commands.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joss/aiko/internal/domain"
)

const (
	DefaultEmotion = "neutral"
	DefaultGesture = "idle"
	DefaultSize    = "1024x1024"
)

// EmotionVocab is the fixed set of emotions the avatar can express.
var EmotionVocab = map[string]bool{
	"neutral": true, "happy": true, "sad": true, "angry": true,
	"surprised": true, "shy": true, "excited": true, "worried": true,
}

// GestureVocab is the fixed set of motions the avatar can play.
var GestureVocab = map[string]bool{
	"idle": true, "wave": true, "nod": true, "shake_head": true,
	"dance": true, "hug": true, "clap": true, "heart": true,
}

// ImageGenCommand asks the UI to confirm generating an image.
// Consumed once and discarded; never persisted.
type ImageGenCommand struct {
	Prompt string
	Size   string
}

// Result holds everything extracted from one raw model response.
type Result struct {
	Emotion       string
	Gesture       string
	CleanText     string
	ImageCommand  *ImageGenCommand
	Anniversaries []domain.Anniversary
}

var (
	emotionRe = regexp.MustCompile(`\[EMOTION:\s*([A-Za-z_]+)\s*\]`)
	gestureRe = regexp.MustCompile(`\[GESTURE:\s*([A-Za-z_]+)\s*\]`)

	// [ANNIVERSARY:kind|name|MM-DD] or [ANNIVERSARY:kind|name|MM-DD|YYYY]
	anniversaryRe = regexp.MustCompile(`\[ANNIVERSARY:([^\]|]+)\|([^\]|]+)\|(\d{1,2}-\d{1,2})(?:\|(\d{4}))?\]`)

	// Structured image block:
	//   [IMAGE_GEN]
	//   prompt: sunset over the sea
	//   size: 1024x1024
	//   [/IMAGE_GEN]
	imageBlockRe = regexp.MustCompile(`(?s)\[IMAGE_GEN\](.*?)\[/IMAGE_GEN\]`)
	promptLineRe = regexp.MustCompile(`(?m)^\s*prompt\s*[:：]\s*(.+?)\s*$`)
	sizeLineRe   = regexp.MustCompile(`(?m)^\s*size\s*[:：]\s*(\d+x\d+)\s*$`)

	// Bracketed shorthand: [DRAW:夕阳]
	drawShortRe = regexp.MustCompile(`\[DRAW:\s*([^\]]+?)\s*\]`)

	thinkMarker = "[THINK]"
	replyMarker = "[REPLY]"
)

// Parse extracts tags and clean text from one raw model response.
func Parse(raw string) Result {
	res := Result{
		Emotion: DefaultEmotion,
		Gesture: DefaultGesture,
	}

	if m := emotionRe.FindStringSubmatch(raw); m != nil {
		if tag := strings.ToLower(m[1]); EmotionVocab[tag] {
			res.Emotion = tag
		}
	}
	if m := gestureRe.FindStringSubmatch(raw); m != nil {
		if tag := strings.ToLower(m[1]); GestureVocab[tag] {
			res.Gesture = tag
		}
	}

	res.Anniversaries = parseAnniversaries(raw)
	res.ImageCommand = parseImageCommand(raw)
	res.CleanText = cleanText(raw)
	return res
}

// parseAnniversaries extracts all well-formed anniversary tags. A malformed
// occurrence is skipped without dropping the others.
func parseAnniversaries(raw string) []domain.Anniversary {
	var out []domain.Anniversary
	for _, m := range anniversaryRe.FindAllStringSubmatch(raw, -1) {
		kind := strings.TrimSpace(m[1])
		name := strings.TrimSpace(m[2])
		monthDay := normalizeMonthDay(m[3])
		if kind == "" || name == "" || monthDay == "" {
			continue
		}
		a := domain.Anniversary{Kind: kind, Name: name, MonthDay: monthDay}
		if m[4] != "" {
			a.Year, _ = strconv.Atoi(m[4])
		}
		out = append(out, a)
	}
	return out
}

func normalizeMonthDay(s string) string {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return ""
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return ""
	}
	return pad2(month) + "-" + pad2(day)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// parseImageCommand tries the structured block first, then the bracketed
// shorthand. First valid match wins; partial matches are ignored.
func parseImageCommand(raw string) *ImageGenCommand {
	if m := imageBlockRe.FindStringSubmatch(raw); m != nil {
		body := m[1]
		if pm := promptLineRe.FindStringSubmatch(body); pm != nil && strings.TrimSpace(pm[1]) != "" {
			cmd := &ImageGenCommand{Prompt: strings.TrimSpace(pm[1]), Size: DefaultSize}
			if sm := sizeLineRe.FindStringSubmatch(body); sm != nil {
				cmd.Size = sm[1]
			}
			return cmd
		}
	}
	if m := drawShortRe.FindStringSubmatch(raw); m != nil && strings.TrimSpace(m[1]) != "" {
		return &ImageGenCommand{Prompt: strings.TrimSpace(m[1]), Size: DefaultSize}
	}
	return nil
}

// cleanText strips the inner-monologue block and all recognized tags.
func cleanText(raw string) string {
	text := raw

	// Monologue: a [THINK] prefix runs until [REPLY] or end of string.
	trimmed := strings.TrimLeft(text, " \t\r\n")
	if strings.HasPrefix(trimmed, thinkMarker) {
		if idx := strings.Index(trimmed, replyMarker); idx >= 0 {
			text = trimmed[idx+len(replyMarker):]
		} else {
			text = ""
		}
	}
	text = strings.ReplaceAll(text, replyMarker, "")

	text = emotionRe.ReplaceAllString(text, "")
	text = gestureRe.ReplaceAllString(text, "")
	text = anniversaryRe.ReplaceAllString(text, "")
	text = imageBlockRe.ReplaceAllString(text, "")
	text = drawShortRe.ReplaceAllString(text, "")

	return strings.TrimLeft(text, " \t\r\n")
}
