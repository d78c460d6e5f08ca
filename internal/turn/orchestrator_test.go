package turn

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/aiko/internal/avatar"
	"github.com/joss/aiko/internal/config"
	"github.com/joss/aiko/internal/domain"
	"github.com/joss/aiko/internal/logging"
	"github.com/joss/aiko/internal/memory"
	"github.com/joss/aiko/internal/notify"
	"github.com/joss/aiko/internal/parser"
	"github.com/joss/aiko/internal/persona"
	"github.com/joss/aiko/internal/prompt"
	"github.com/joss/aiko/internal/provider"
	"github.com/joss/aiko/internal/session"
	"github.com/joss/aiko/internal/storage"
	"github.com/joss/aiko/pkg/llm"
)

type fakeAvatar struct {
	mu       sync.Mutex
	emotions []string
	gestures []string
	spoken   []string
}

func (f *fakeAvatar) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	return nil
}
func (f *fakeAvatar) SpeakImmediate(ctx context.Context, text string) error {
	return f.Speak(ctx, text)
}
func (f *fakeAvatar) SetEmotion(ctx context.Context, emotion string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emotions = append(f.emotions, emotion)
	return nil
}
func (f *fakeAvatar) PlayMotion(ctx context.Context, gesture string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gestures = append(f.gestures, gesture)
	return nil
}
func (f *fakeAvatar) Interrupt(ctx context.Context) error { return nil }
func (f *fakeAvatar) States() <-chan avatar.State          { return nil }

type fakeMemoryService struct {
	mu      sync.Mutex
	block   string
	fastErr error
	fullErr error
	saved   []string
}

func (f *fakeMemoryService) RetrieveFast(ctx context.Context, query, sessionID string, opts memory.Options) (string, error) {
	if f.fastErr != nil {
		return "", f.fastErr
	}
	return f.block, nil
}
func (f *fakeMemoryService) RetrieveFull(ctx context.Context, query, sessionID string, opts memory.Options) (string, error) {
	if f.fullErr != nil {
		return "", f.fullErr
	}
	return f.block, nil
}
func (f *fakeMemoryService) Save(ctx context.Context, text, tag, sessionID, emotion string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, tag+":"+text)
	return nil
}

func (f *fakeMemoryService) savedEntries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.saved))
	copy(out, f.saved)
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.CrisisEvent
}

func (f *fakeNotifier) Notify(ctx context.Context, ev notify.CrisisEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

// blockingGateway holds the stream open until released, so a test can
// supersede the turn mid-generation.
type blockingGateway struct {
	release chan struct{}
	text    string
}

func (g *blockingGateway) ID() string { return "blocking" }

func (g *blockingGateway) StreamChat(ctx context.Context, req *llm.ChatRequest) (<-chan llm.Chunk, error) {
	chunks := make(chan llm.Chunk, 2)
	go func() {
		defer close(chunks)
		select {
		case <-g.release:
			chunks <- llm.Chunk{Text: g.text, Done: true}
		case <-ctx.Done():
			chunks <- llm.Chunk{Text: "", Err: ctx.Err()}
		}
	}()
	return chunks, nil
}

type harness struct {
	orch     *Orchestrator
	sessions *session.Manager
	store    *storage.Storage
	avatar   *fakeAvatar
	memory   *fakeMemoryService
	notifier *fakeNotifier

	mu       sync.Mutex
	streams  []string
	warnings []string
	results  []parser.Result
	errs     []error
}

func newHarness(t *testing.T, gw llm.Gateway, mutate func(*config.Config)) *harness {
	t.Helper()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Memory.WarmupTurns = 0
	cfg.Memory.IncludeAIOutput = false
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{
		store:    store,
		sessions: session.NewManager(store),
		avatar:   &fakeAvatar{},
		memory:   &fakeMemoryService{},
		notifier: &fakeNotifier{},
	}

	logger := logging.NewWriter("turn", io.Discard)
	h.orch = New(Options{
		Gateway:       gw,
		Sessions:      h.sessions,
		Memory:        memory.NewCoordinator(h.memory, cfg.Memory, logger),
		Builder:       prompt.NewBuilder(persona.Default(), cfg.VisionDetail),
		Avatar:        h.avatar,
		Notifier:      h.notifier,
		Anniversaries: store,
		Config:        cfg,
		Logger:        logger,
		Listener: Listener{
			OnStream: func(text string) {
				h.mu.Lock()
				h.streams = append(h.streams, text)
				h.mu.Unlock()
			},
			OnWarning: func(msg string) {
				h.mu.Lock()
				h.warnings = append(h.warnings, msg)
				h.mu.Unlock()
			},
			OnResult: func(res parser.Result) {
				h.mu.Lock()
				h.results = append(h.results, res)
				h.mu.Unlock()
			},
			OnError: func(err error) {
				h.mu.Lock()
				h.errs = append(h.errs, err)
				h.mu.Unlock()
			},
		},
	})
	return h
}

func wait(t *testing.T, turn *Turn) {
	t.Helper()
	select {
	case <-turn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("turn did not finish")
	}
}

func TestRoundTrip(t *testing.T) {
	mock := provider.NewMock(provider.MockReply{
		Text: "[EMOTION:happy] [GESTURE:wave] 你好呀！",
	})
	h := newHarness(t, mock, nil)

	turn := h.orch.Submit(context.Background(), "你好")
	wait(t, turn)
	require.NoError(t, turn.Err())

	// Parsed result drives the avatar.
	res := turn.Result()
	assert.Equal(t, "happy", res.Emotion)
	assert.Equal(t, "wave", res.Gesture)
	assert.Equal(t, "你好呀！", res.CleanText)
	assert.Equal(t, []string{"happy"}, h.avatar.emotions)
	assert.Equal(t, []string{"wave"}, h.avatar.gestures)
	assert.Equal(t, []string{"你好呀！"}, h.avatar.spoken)

	// Both sides of the exchange are persisted; the assistant message
	// keeps the unparsed stream as raw text.
	msgs, err := h.sessions.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)
	assert.Equal(t, "你好", msgs[0].Text)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "你好呀！", msgs[1].Text)
	assert.Equal(t, "[EMOTION:happy] [GESTURE:wave] 你好呀！", msgs[1].Raw)

	// The user text is remembered.
	saved := h.memory.savedEntries()
	require.Len(t, saved, 1)
	assert.Equal(t, domain.TagUserInput+":你好", saved[0])

	// The final stream value is the full text.
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.streams)
	assert.Equal(t, "[EMOTION:happy] [GESTURE:wave] 你好呀！", h.streams[len(h.streams)-1])
	assert.Empty(t, h.errs)
}

func TestImageIntentShortCircuit(t *testing.T) {
	mock := provider.NewMock()
	h := newHarness(t, mock, nil)

	turn := h.orch.Submit(context.Background(), "帮我画一张夕阳的图片")
	wait(t, turn)
	require.NoError(t, turn.Err())

	assert.Equal(t, 0, mock.Calls(), "picture requests must not reach the model")

	res := turn.Result()
	require.NotNil(t, res.ImageCommand)
	assert.Equal(t, "夕阳", res.ImageCommand.Prompt)
	assert.Equal(t, parser.DefaultSize, res.ImageCommand.Size)

	// The acknowledgment is spoken and persisted like a normal reply.
	require.Len(t, h.avatar.spoken, 1)
	msgs, err := h.sessions.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.RoleAssistant, msgs[1].Role)
}

func TestSupersededTurnStopsSideEffects(t *testing.T) {
	gw := &blockingGateway{release: make(chan struct{}), text: "迟到的回复"}
	h := newHarness(t, gw, nil)

	first := h.orch.Submit(context.Background(), "第一条")

	// Give the first turn time to reach generation, then supersede it.
	// Its context is canceled before the gateway is released, so only
	// the second turn ever sees a completed stream.
	time.Sleep(50 * time.Millisecond)
	second := h.orch.Submit(context.Background(), "第二条")
	time.Sleep(20 * time.Millisecond)
	close(gw.release)

	wait(t, first)
	wait(t, second)

	assert.ErrorIs(t, first.Err(), ErrSuperseded)
	require.NoError(t, second.Err())

	// Only the superseding turn speaks.
	h.avatar.mu.Lock()
	spoken := len(h.avatar.spoken)
	h.avatar.mu.Unlock()
	assert.Equal(t, 1, spoken)

	// Cancellation is never reported through the error listener.
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Empty(t, h.errs)
}

func TestCrisisTriggersNotifier(t *testing.T) {
	mock := provider.NewMock(provider.MockReply{Text: "[EMOTION:worried] 我在呢，先和我说说话好吗？"})
	h := newHarness(t, mock, nil)

	turn := h.orch.Submit(context.Background(), "我真的不想活了")
	wait(t, turn)
	require.NoError(t, turn.Err())

	h.notifier.mu.Lock()
	defer h.notifier.mu.Unlock()
	require.Len(t, h.notifier.events, 1)
	assert.NotEmpty(t, h.notifier.events[0].Keyword)
	assert.Equal(t, "我真的不想活了", h.notifier.events[0].Text)

	// The turn itself still completes normally.
	assert.Equal(t, 1, mock.Calls())
}

func TestDegradedRetrievalWarnsOnce(t *testing.T) {
	mock := provider.NewMock(provider.MockReply{Text: "好的。"})
	h := newHarness(t, mock, nil)
	h.memory.fastErr = errors.New("redis down")
	h.memory.fullErr = errors.New("store down")

	for i := 0; i < 3; i++ {
		wait(t, h.orch.Submit(context.Background(), "随便聊聊"))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.warnings, 1)
	assert.Equal(t, memory.DegradedWarning, h.warnings[0])
}

func TestMemoryContextReachesPrompt(t *testing.T) {
	mock := provider.NewMock(provider.MockReply{Text: "记得呀。"})
	h := newHarness(t, mock, nil)
	h.memory.block = "- (happy) 用户喜欢吃草莓"

	wait(t, h.orch.Submit(context.Background(), "你还记得我喜欢吃什么吗"))

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	var found bool
	for _, msg := range reqs[0].Messages {
		if msg.Role != domain.RoleSystem {
			continue
		}
		for _, p := range msg.Parts {
			if tp, ok := p.(llm.TextPart); ok && strings.Contains(tp.Text, "用户喜欢吃草莓") {
				found = true
			}
		}
	}
	assert.True(t, found, "memory block missing from system messages")
}

func TestAiOutputSavedWhenEnabled(t *testing.T) {
	mock := provider.NewMock(provider.MockReply{Text: "[EMOTION:happy] 好开心！"})
	h := newHarness(t, mock, func(cfg *config.Config) {
		cfg.Memory.IncludeAIOutput = true
	})

	wait(t, h.orch.Submit(context.Background(), "今天很开心"))

	saved := h.memory.savedEntries()
	require.Len(t, saved, 2)
	assert.Equal(t, domain.TagUserInput+":今天很开心", saved[0])
	assert.Equal(t, domain.TagAIOutput+":好开心！", saved[1])
}

func TestAnniversariesRecorded(t *testing.T) {
	mock := provider.NewMock(provider.MockReply{
		Text: "记住啦！[ANNIVERSARY:birthday|用户生日|03-14|1998] 到时候我会提醒你的。",
	})
	h := newHarness(t, mock, nil)

	turn := h.orch.Submit(context.Background(), "我的生日是3月14日")
	wait(t, turn)
	require.NoError(t, turn.Err())

	list, err := h.store.ListAnniversaries(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "birthday", list[0].Kind)
	assert.Equal(t, "用户生日", list[0].Name)
	assert.Equal(t, "03-14", list[0].MonthDay)
	assert.Equal(t, 1998, list[0].Year)
}

func TestGatewayErrorSurfaces(t *testing.T) {
	mock := provider.NewMock(provider.MockReply{Err: errors.New("upstream 500")})
	h := newHarness(t, mock, nil)

	turn := h.orch.Submit(context.Background(), "你好")
	wait(t, turn)
	require.ErrorIs(t, turn.Err(), ErrServiceUnavailable)

	// Listeners get the generic message, never the upstream error text.
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.errs, 1)
	assert.ErrorIs(t, h.errs[0], ErrServiceUnavailable)
	assert.NotContains(t, h.errs[0].Error(), "upstream 500")
}

func TestBlankReplyFailsTurn(t *testing.T) {
	mock := provider.NewMock(provider.MockReply{Text: "   "})
	h := newHarness(t, mock, nil)

	turn := h.orch.Submit(context.Background(), "你好")
	wait(t, turn)
	require.ErrorIs(t, turn.Err(), ErrServiceUnavailable)

	// The user message survives; no assistant message is written.
	msgs, err := h.sessions.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleUser, msgs[0].Role)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.errs, 1)
	assert.Empty(t, h.avatar.spoken)
	assert.Empty(t, h.results)
}

func TestStreamValuesAreCumulative(t *testing.T) {
	mock := provider.NewMock(provider.MockReply{Text: "一二三四五六七八九十", ChunkSize: 1})
	h := newHarness(t, mock, nil)

	wait(t, h.orch.Submit(context.Background(), "数数"))

	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.streams)
	prev := ""
	for _, s := range h.streams {
		assert.GreaterOrEqual(t, len(s), len(prev), "stream values must only grow")
		prev = s
	}
	assert.Equal(t, "一二三四五六七八九十", h.streams[len(h.streams)-1])
}
