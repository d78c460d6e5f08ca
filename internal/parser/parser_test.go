package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	res := Parse("[EMOTION:happy] [GESTURE:wave] 你好呀！")
	require.Equal(t, "happy", res.Emotion)
	require.Equal(t, "wave", res.Gesture)
	require.Equal(t, "你好呀！", res.CleanText)
	require.Nil(t, res.ImageCommand)
	require.Empty(t, res.Anniversaries)
}

func TestParseDefaults(t *testing.T) {
	res := Parse("plain text, no tags")
	require.Equal(t, DefaultEmotion, res.Emotion)
	require.Equal(t, DefaultGesture, res.Gesture)
	require.Equal(t, "plain text, no tags", res.CleanText)
}

func TestParseUnknownVocabularyFallsBack(t *testing.T) {
	res := Parse("[EMOTION:ecstatic][GESTURE:backflip] hi")
	require.Equal(t, DefaultEmotion, res.Emotion)
	require.Equal(t, DefaultGesture, res.Gesture)
	// unknown values still use the recognized tag form, so they are stripped
	require.Equal(t, "hi", res.CleanText)
}

func TestParseTotality(t *testing.T) {
	inputs := []string{
		"",
		"[EMOTION:",
		"]]][[[",
		"[ANNIVERSARY:|]",
		strings.Repeat("[", 1000),
		"[IMAGE_GEN]no prompt line[/IMAGE_GEN]",
	}
	for _, in := range inputs {
		res := Parse(in)
		require.NotEmpty(t, res.Emotion, "input %q", in)
		require.NotEmpty(t, res.Gesture, "input %q", in)
	}
}

func TestParseAnniversaries(t *testing.T) {
	raw := "记住啦！[ANNIVERSARY:birthday|你的生日|04-01]和[ANNIVERSARY:first_meet|我们认识的日子|12-25|2024]"
	res := Parse(raw)
	require.Len(t, res.Anniversaries, 2)
	require.Equal(t, "birthday", res.Anniversaries[0].Kind)
	require.Equal(t, "04-01", res.Anniversaries[0].MonthDay)
	require.Equal(t, 2024, res.Anniversaries[1].Year)
	require.Equal(t, "记住啦！和", res.CleanText)
}

func TestParseAnniversaryMalformedSkipped(t *testing.T) {
	raw := "[ANNIVERSARY:bad|x|99-99] ok [ANNIVERSARY:birthday|生日|4-1]"
	res := Parse(raw)
	require.Len(t, res.Anniversaries, 1)
	require.Equal(t, "04-01", res.Anniversaries[0].MonthDay)
}

func TestParseImageCommandStructured(t *testing.T) {
	raw := "好呀！[IMAGE_GEN]\nprompt: 夕阳下的海边\nsize: 512x512\n[/IMAGE_GEN]"
	res := Parse(raw)
	require.NotNil(t, res.ImageCommand)
	require.Equal(t, "夕阳下的海边", res.ImageCommand.Prompt)
	require.Equal(t, "512x512", res.ImageCommand.Size)
	require.Equal(t, "好呀！", res.CleanText)
}

func TestParseImageCommandShorthand(t *testing.T) {
	res := Parse("我来画！[DRAW:一只橘猫]")
	require.NotNil(t, res.ImageCommand)
	require.Equal(t, "一只橘猫", res.ImageCommand.Prompt)
	require.Equal(t, DefaultSize, res.ImageCommand.Size)
}

func TestParseImageCommandStructuredWinsOverShorthand(t *testing.T) {
	raw := "[IMAGE_GEN]\nprompt: a\n[/IMAGE_GEN][DRAW:b]"
	res := Parse(raw)
	require.NotNil(t, res.ImageCommand)
	require.Equal(t, "a", res.ImageCommand.Prompt)
}

func TestParseInvalidStructuredFallsToShorthand(t *testing.T) {
	raw := "[IMAGE_GEN]nothing useful[/IMAGE_GEN][DRAW:b]"
	res := Parse(raw)
	require.NotNil(t, res.ImageCommand)
	require.Equal(t, "b", res.ImageCommand.Prompt)
}

func TestParseMonologueStripped(t *testing.T) {
	raw := "[THINK]她今天看起来有点累，我应该温柔一点。[REPLY][EMOTION:happy]辛苦啦，今天也要好好休息哦。"
	res := Parse(raw)
	require.Equal(t, "happy", res.Emotion)
	require.Equal(t, "辛苦啦，今天也要好好休息哦。", res.CleanText)
}

func TestParseMonologueWithoutReplyMarker(t *testing.T) {
	res := Parse("[THINK]只有内心独白，没有回复")
	require.Equal(t, "", res.CleanText)
	require.Equal(t, DefaultEmotion, res.Emotion)
}
