// Package prompt assembles the ordered message list sent to the language
// model. The section order is fixed and never rearranged: persona, identity
// binding, memory context, history, current turn.
package prompt

import (
	"fmt"
	"strings"

	"github.com/joss/aiko/internal/domain"
	"github.com/joss/aiko/internal/persona"
	"github.com/joss/aiko/pkg/llm"
)

// Builder produces deterministic prompts for a persona.
type Builder struct {
	persona      *persona.Persona
	visionDetail string
}

// NewBuilder creates a Builder. visionDetail is the image detail hint
// ("auto" when empty).
func NewBuilder(p *persona.Persona, visionDetail string) *Builder {
	if p == nil {
		p = persona.Default()
	}
	if visionDetail == "" {
		visionDetail = "auto"
	}
	return &Builder{persona: p, visionDetail: visionDetail}
}

// Input carries everything one turn contributes to the prompt.
type Input struct {
	Affinity      int
	Intimacy      int
	MemoryContext string // empty means the memory section is omitted
	History       []*domain.ChatMessage
	UserText      string
	Images        []llm.ImagePart // one per image, or one per extracted video frame
	VideoFrames   bool            // Images came from a video; add the frame-count note
}

// Build assembles the message list. The returned flag reports whether any
// image part is present, which selects the vision route.
func (b *Builder) Build(in Input) ([]llm.Message, bool) {
	msgs := make([]llm.Message, 0, len(in.History)+4)

	msgs = append(msgs, llm.Text(domain.RoleSystem, b.personaMessage(in.Affinity, in.Intimacy)))
	msgs = append(msgs, llm.Text(domain.RoleSystem, b.identityMessage()))

	if in.MemoryContext != "" {
		msgs = append(msgs, llm.Text(domain.RoleSystem,
			"关于用户的长期记忆（供参考，不要逐字复述）：\n"+in.MemoryContext))
	}

	history := in.History
	// The freshly appended user message may already be the newest history
	// entry; drop it there since it is added as the current turn below.
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Role == domain.RoleUser && last.Text == in.UserText {
			history = history[:n-1]
		}
	}
	for _, msg := range history {
		text := msg.Text
		if text == "" {
			continue
		}
		msgs = append(msgs, llm.Text(msg.Role, text))
	}

	msgs = append(msgs, b.currentTurn(in))
	return msgs, len(in.Images) > 0
}

func (b *Builder) currentTurn(in Input) llm.Message {
	if len(in.Images) == 0 {
		return llm.Text(domain.RoleUser, in.UserText)
	}

	parts := make([]llm.Part, 0, len(in.Images)+1)
	text := in.UserText
	if in.VideoFrames && len(in.Images) > 1 {
		text = fmt.Sprintf("下面是从一段视频中按时间顺序截取的 %d 帧画面。%s", len(in.Images), text)
	}
	parts = append(parts, llm.TextPart{Text: text})
	for _, img := range in.Images {
		img.Detail = b.visionDetail
		parts = append(parts, img)
	}
	return llm.Message{Role: domain.RoleUser, Parts: parts}
}

func (b *Builder) personaMessage(affinity, intimacy int) string {
	p := b.persona
	var sb strings.Builder
	sb.WriteString("你是" + p.Name + "。" + p.Identity + "\n")
	if p.Relationship != "" {
		sb.WriteString("你和用户的关系：" + p.Relationship + "\n")
	}
	if p.Style != "" {
		sb.WriteString("说话风格：" + p.Style + "\n")
	}
	fmt.Fprintf(&sb, "当前好感度 %d/100，亲密等级 %d/5。根据这两个数值调整态度的热络程度。\n", affinity, intimacy)
	sb.WriteString("回复时可以使用以下控制标记：[EMOTION:happy|sad|angry|surprised|shy|excited|worried|neutral]、" +
		"[GESTURE:wave|nod|shake_head|dance|hug|clap|heart|idle]。" +
		"如果要为用户记下纪念日，使用 [ANNIVERSARY:类型|名称|MM-DD]。" +
		"如果用户想要一张图片，使用 [IMAGE_GEN] prompt: ... [/IMAGE_GEN]。")
	return sb.String()
}

func (b *Builder) identityMessage() string {
	p := b.persona
	return fmt.Sprintf(
		"用户的性别是%s，你的性别是%s。语气亲近程度设定为 %d/100。"+
			"这个设定只影响语气的亲昵程度，绝不改变你的身份设定，也绝不放宽任何安全边界。",
		p.UserGender, p.AIGender, p.Warmth)
}
