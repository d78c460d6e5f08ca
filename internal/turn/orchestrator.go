// Package turn orchestrates one conversational turn end to end: persist,
// retrieve, generate, parse, dispatch, score.
package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joss/aiko/internal/avatar"
	"github.com/joss/aiko/internal/config"
	"github.com/joss/aiko/internal/domain"
	"github.com/joss/aiko/internal/logging"
	"github.com/joss/aiko/internal/media"
	"github.com/joss/aiko/internal/memory"
	"github.com/joss/aiko/internal/notify"
	"github.com/joss/aiko/internal/parser"
	"github.com/joss/aiko/internal/prompt"
	"github.com/joss/aiko/internal/relation"
	"github.com/joss/aiko/internal/session"
	"github.com/joss/aiko/pkg/llm"
)

// ErrSuperseded marks a turn replaced by a newer submission. It never
// reaches listeners as an error; only Turn.Err reports it.
var ErrSuperseded = errors.New("turn superseded by newer submission")

// ErrServiceUnavailable is the only upstream failure listeners ever see.
// The raw cause stays in the structured log.
var ErrServiceUnavailable = errors.New("服务暂时不可用，请稍后再试。")

const attachmentWarning = "附件处理失败，这条消息将按纯文字发送。"

// Phase is a turn's lifecycle stage.
type Phase int

const (
	PhaseSubmitted Phase = iota
	PhasePersisted
	PhaseRetrieving
	PhaseGenerating
	PhaseCompleting
	PhaseDone
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseSubmitted:
		return "submitted"
	case PhasePersisted:
		return "persisted"
	case PhaseRetrieving:
		return "retrieving"
	case PhaseGenerating:
		return "generating"
	case PhaseCompleting:
		return "completing"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Listener receives a turn's observable events. All callbacks are
// optional and are only invoked while the turn is still current.
type Listener struct {
	OnPhase   func(Phase)
	OnStream  func(text string) // full accumulated text, throttled
	OnWarning func(msg string)
	OnResult  func(res parser.Result)
	OnError   func(err error)
}

// Turn is the handle returned by Submit. Done closes when the turn
// finishes for any reason; Err is valid afterwards.
type Turn struct {
	id   int64
	done chan struct{}
	err  error
	res  parser.Result
}

func (t *Turn) Done() <-chan struct{} { return t.done }

func (t *Turn) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Result returns the parsed outcome after Done.
func (t *Turn) Result() parser.Result {
	select {
	case <-t.done:
		return t.res
	default:
		return parser.Result{}
	}
}

// Options wires an Orchestrator's collaborators.
type Options struct {
	Gateway       llm.Gateway
	Sessions      *session.Manager
	Memory        *memory.Coordinator
	Builder       *prompt.Builder
	Signals       *relation.Processor
	Avatar        avatar.Driver
	Notifier      notify.Notifier
	Extractor     media.FrameExtractor
	Anniversaries domain.AnniversarySink
	Config        *config.Config
	Logger        *logging.Logger
	Listener      Listener
}

// Orchestrator runs turns. At most one turn is current at a time: a new
// Submit supersedes the previous turn, which then stops producing
// externally visible effects at its next checkpoint.
type Orchestrator struct {
	opts Options
	seq  atomic.Int64

	mu         sync.Mutex
	cancelPrev context.CancelFunc
}

func New(opts Options) *Orchestrator {
	if opts.Avatar == nil {
		opts.Avatar = avatar.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.New("turn")
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Signals == nil {
		opts.Signals = relation.NewProcessor(nil)
	}
	return &Orchestrator{opts: opts}
}

// Relationship exposes the live relationship state.
func (o *Orchestrator) Relationship() *relation.State {
	return o.opts.Signals.State()
}

type attachment struct {
	imagePath string
	videoPath string
}

// Submit starts a text turn.
func (o *Orchestrator) Submit(ctx context.Context, text string) *Turn {
	return o.submit(ctx, text, attachment{})
}

// SubmitImage starts a turn with an attached image file.
func (o *Orchestrator) SubmitImage(ctx context.Context, text, imagePath string) *Turn {
	return o.submit(ctx, text, attachment{imagePath: imagePath})
}

// SubmitVideo starts a turn with an attached video file; frames are
// sampled and sent as images.
func (o *Orchestrator) SubmitVideo(ctx context.Context, text, videoPath string) *Turn {
	return o.submit(ctx, text, attachment{videoPath: videoPath})
}

func (o *Orchestrator) submit(ctx context.Context, text string, att attachment) *Turn {
	id := o.seq.Add(1)
	turnCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	if o.cancelPrev != nil {
		o.cancelPrev()
	}
	o.cancelPrev = cancel
	o.mu.Unlock()

	t := &Turn{id: id, done: make(chan struct{})}
	go o.run(turnCtx, t, text, att)
	return t
}

func (o *Orchestrator) current(t *Turn) bool {
	return o.seq.Load() == t.id
}

func (o *Orchestrator) phase(t *Turn, p Phase) {
	if !o.current(t) {
		return
	}
	if o.opts.Listener.OnPhase != nil {
		o.opts.Listener.OnPhase(p)
	}
}

func (o *Orchestrator) warn(t *Turn, msg string) {
	if msg == "" || !o.current(t) {
		return
	}
	if o.opts.Listener.OnWarning != nil {
		o.opts.Listener.OnWarning(msg)
	}
}

func (o *Orchestrator) fail(t *Turn, err error) {
	t.err = err
	if o.current(t) {
		o.phase(t, PhaseDone)
		if o.opts.Listener.OnError != nil {
			o.opts.Listener.OnError(err)
		}
	}
	close(t.done)
}

func (o *Orchestrator) abort(t *Turn) {
	t.err = ErrSuperseded
	o.phase(t, PhaseAborted)
	close(t.done)
}

func (o *Orchestrator) run(ctx context.Context, t *Turn, text string, att attachment) {
	log := o.opts.Logger.WithRequest(t.id)
	start := time.Now()
	o.phase(t, PhaseSubmitted)

	// 1. Persist the user message before anything touches the network.
	// Persistence failure degrades to an in-memory turn.
	userMsg := &domain.ChatMessage{
		Role:     domain.RoleUser,
		Text:     text,
		ImageRef: att.imagePath,
		VideoRef: att.videoPath,
	}
	if err := o.opts.Sessions.Append(ctx, userMsg); err != nil {
		log.Warn("persist user message", nil, err)
	}
	sessionID := userMsg.SessionID
	log = log.WithSession(sessionID)
	if !o.current(t) {
		o.abort(t)
		return
	}
	o.phase(t, PhasePersisted)

	// 2. Plain picture requests never reach the model.
	if att.imagePath == "" && att.videoPath == "" {
		if subject, ok := detectImageIntent(text); ok {
			o.finishImageIntent(ctx, t, log, subject)
			return
		}
	}

	// 3. Relationship scoring on the user text.
	analysis := o.opts.Signals.Analyze(text)
	if analysis.Crisis {
		o.notifyCrisis(ctx, log, sessionID, analysis.CrisisKeyword, text)
	}

	// 4. Attachments, before any retrieval spends a network call.
	// Failure degrades the turn to plain text.
	images, videoFrames, attWarn := o.encodeAttachment(ctx, att)
	o.warn(t, attWarn)

	// 5. Memory retrieval and history loading.
	o.phase(t, PhaseRetrieving)
	history, memoryBlock, warning := o.gather(ctx, sessionID, text)
	o.warn(t, warning)
	if !o.current(t) {
		o.abort(t)
		return
	}

	state := o.opts.Signals.State()
	msgs, hasImage := o.opts.Builder.Build(prompt.Input{
		Affinity:      state.Affinity,
		Intimacy:      state.Intimacy,
		MemoryContext: memoryBlock,
		History:       history,
		UserText:      text,
		Images:        images,
		VideoFrames:   videoFrames,
	})

	// 6. Stream the model response.
	o.phase(t, PhaseGenerating)
	route := llm.RouteText
	if hasImage {
		route = llm.RouteVision
	}
	raw, err := o.stream(ctx, t, &llm.ChatRequest{Messages: msgs, Route: route})
	if err != nil {
		if errors.Is(err, context.Canceled) || !o.current(t) {
			o.abort(t)
			return
		}
		log.Error("generate response", nil, err)
		o.fail(t, ErrServiceUnavailable)
		return
	}
	if !o.current(t) {
		o.abort(t)
		return
	}
	// A completed stream with nothing in it fails the turn; no assistant
	// message is persisted.
	if strings.TrimSpace(raw) == "" {
		log.Error("blank model reply", nil, nil)
		o.fail(t, ErrServiceUnavailable)
		return
	}

	// 7. Parse, dispatch, persist, remember.
	o.phase(t, PhaseCompleting)
	res := parser.Parse(raw)
	o.dispatchAvatar(ctx, t, log, res)
	o.persistAssistant(ctx, log, res.CleanText, raw)
	o.remember(ctx, log, sessionID, text, res)

	t.res = res
	if o.current(t) {
		if o.opts.Listener.OnResult != nil {
			o.opts.Listener.OnResult(res)
		}
		log.Timed("turn completed", start, map[string]any{
			"emotion": res.Emotion,
			"gesture": res.Gesture,
		})
	}
	o.phase(t, PhaseDone)
	close(t.done)
}

// finishImageIntent completes a short-circuited picture request: no
// model call, a canned acknowledgment, and an image command in the result.
func (o *Orchestrator) finishImageIntent(ctx context.Context, t *Turn, log *logging.Logger, subject string) {
	ack := "好呀，这就帮你画：" + subject
	res := parser.Result{
		Emotion:   "happy",
		Gesture:   parser.DefaultGesture,
		CleanText: ack,
		ImageCommand: &parser.ImageGenCommand{
			Prompt: subject,
			Size:   parser.DefaultSize,
		},
	}
	if !o.current(t) {
		o.abort(t)
		return
	}
	if o.opts.Listener.OnStream != nil {
		o.opts.Listener.OnStream(ack)
	}
	o.dispatchAvatar(ctx, t, log, res)
	o.persistAssistant(ctx, log, ack, ack)

	t.res = res
	if o.current(t) {
		if o.opts.Listener.OnResult != nil {
			o.opts.Listener.OnResult(res)
		}
	}
	o.phase(t, PhaseDone)
	close(t.done)
}

// gather loads recent history and the memory context block. The two
// loads run concurrently unless sequential retrieval is configured.
func (o *Orchestrator) gather(ctx context.Context, sessionID, query string) (history []*domain.ChatMessage, memoryBlock, warning string) {
	limit := o.opts.Config.Memory.HistoryLimit
	turnNumber := o.turnNumber(ctx)

	if o.opts.Memory == nil {
		history, _ = o.opts.Sessions.Recent(ctx, limit)
		return history, "", ""
	}

	if o.opts.Config.SequentialRetrieval {
		history, _ = o.opts.Sessions.Recent(ctx, limit)
		memoryBlock, warning = o.opts.Memory.Retrieve(ctx, query, sessionID, history, turnNumber)
		return history, memoryBlock, warning
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		history, _ = o.opts.Sessions.Recent(ctx, limit)
	}()
	go func() {
		defer wg.Done()
		// The retrieval side loads its own window so both run in parallel.
		window, _ := o.opts.Sessions.Recent(ctx, limit)
		memoryBlock, warning = o.opts.Memory.Retrieve(ctx, query, sessionID, window, turnNumber)
	}()
	wg.Wait()
	return history, memoryBlock, warning
}

// turnNumber approximates the user-turn index from the message count.
func (o *Orchestrator) turnNumber(ctx context.Context) int {
	count, err := o.opts.Sessions.Count(ctx)
	if err != nil {
		return 0
	}
	return (count + 1) / 2
}

func (o *Orchestrator) encodeAttachment(ctx context.Context, att attachment) (images []llm.ImagePart, videoFrames bool, warning string) {
	detail := o.opts.Config.VisionDetail
	switch {
	case att.imagePath != "":
		dataURL, mediaType, err := media.EncodeImage(att.imagePath)
		if err != nil {
			return nil, false, attachmentWarning
		}
		images = append(images, llm.ImagePart{DataURL: dataURL, MediaType: mediaType, Detail: detail})
	case att.videoPath != "":
		if o.opts.Extractor == nil {
			return nil, false, attachmentWarning
		}
		frames, err := o.opts.Extractor.ExtractFrames(ctx, att.videoPath, o.opts.Config.MaxVideoFrames)
		if err != nil || len(frames) == 0 {
			return nil, false, attachmentWarning
		}
		for _, frame := range frames {
			dataURL, mediaType, err := media.EncodeImage(frame)
			if err != nil {
				return nil, false, attachmentWarning
			}
			images = append(images, llm.ImagePart{DataURL: dataURL, MediaType: mediaType, Detail: detail})
		}
		videoFrames = true
	}
	return images, videoFrames, ""
}

// stream consumes the gateway stream, publishing throttled updates while
// the turn is current, and returns the final accumulated text.
func (o *Orchestrator) stream(ctx context.Context, t *Turn, req *llm.ChatRequest) (string, error) {
	chunks, err := o.opts.Gateway.StreamChat(ctx, req)
	if err != nil {
		return "", err
	}

	throttle := newStreamThrottle()
	var text string
	for chunk := range chunks {
		text = chunk.Text
		if chunk.Err != nil {
			return text, chunk.Err
		}
		if chunk.Done {
			break
		}
		if o.current(t) && throttle.Allow(text) {
			if o.opts.Listener.OnStream != nil {
				o.opts.Listener.OnStream(text)
			}
		}
	}
	// Final text always goes out, bypassing the throttle.
	if o.current(t) {
		throttle.Flush(text)
		if o.opts.Listener.OnStream != nil {
			o.opts.Listener.OnStream(text)
		}
	}
	return text, nil
}

// dispatchAvatar is best-effort: a dead avatar never fails the turn.
func (o *Orchestrator) dispatchAvatar(ctx context.Context, t *Turn, log *logging.Logger, res parser.Result) {
	if !o.current(t) {
		return
	}
	av := o.opts.Avatar
	if err := av.SetEmotion(ctx, res.Emotion); err != nil {
		log.Warn("avatar emotion", map[string]any{"emotion": res.Emotion}, err)
	}
	if err := av.PlayMotion(ctx, res.Gesture); err != nil {
		log.Warn("avatar gesture", map[string]any{"gesture": res.Gesture}, err)
	}
	if !o.current(t) {
		return
	}
	if res.CleanText != "" {
		if err := av.Speak(ctx, res.CleanText); err != nil {
			log.Warn("avatar speak", nil, err)
		}
	}
}

// persistAssistant stores the reply with the clean text as display text
// and the unparsed stream as raw. Failure is logged, never surfaced.
func (o *Orchestrator) persistAssistant(ctx context.Context, log *logging.Logger, clean, raw string) {
	msg := &domain.ChatMessage{
		Role: domain.RoleAssistant,
		Text: clean,
		Raw:  raw,
	}
	if err := o.opts.Sessions.Append(ctx, msg); err != nil {
		log.Warn("persist assistant message", nil, err)
	}
}

// remember saves the exchange to long-term memory and records any
// anniversaries the model extracted. All of it is best-effort.
func (o *Orchestrator) remember(ctx context.Context, log *logging.Logger, sessionID, userText string, res parser.Result) {
	if o.opts.Memory != nil {
		o.opts.Memory.Save(ctx, userText, domain.TagUserInput, sessionID, "")
		if o.opts.Config.Memory.IncludeAIOutput && res.CleanText != "" {
			o.opts.Memory.Save(ctx, res.CleanText, domain.TagAIOutput, sessionID, res.Emotion)
		}
	}
	if o.opts.Anniversaries != nil {
		for i := range res.Anniversaries {
			a := res.Anniversaries[i]
			if a.CreatedAt.IsZero() {
				a.CreatedAt = time.Now().UTC()
			}
			if err := o.opts.Anniversaries.RecordAnniversary(ctx, &a); err != nil {
				log.Warn("record anniversary", map[string]any{"name": a.Name}, err)
			}
		}
	}
}

func (o *Orchestrator) notifyCrisis(ctx context.Context, log *logging.Logger, sessionID, keyword, text string) {
	if o.opts.Notifier == nil {
		return
	}
	ev := notify.CrisisEvent{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Keyword:   keyword,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	if err := o.opts.Notifier.Notify(ctx, ev); err != nil {
		log.Warn("crisis notify", map[string]any{"keyword": keyword}, err)
	}
}
