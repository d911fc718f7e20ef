package orchestrator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/streamersales/goCollectionAgent/business/orchestrator"
	"github.com/streamersales/goCollectionAgent/business/session"
	"github.com/streamersales/goCollectionAgent/foundation/catalog"
	"github.com/streamersales/goCollectionAgent/foundation/config"
	"github.com/streamersales/goCollectionAgent/foundation/external/agent"
	"github.com/streamersales/goCollectionAgent/foundation/external/llm"
	"github.com/streamersales/goCollectionAgent/foundation/state"
	"go.uber.org/zap"
)

type fakeGenerator struct {
	fragments []string
	failAfter int // -1 means never fail
	requests  [][]llm.Message
}

func (f *fakeGenerator) StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.Fragment, error) {
	f.requests = append(f.requests, messages)
	ch := make(chan llm.Fragment, len(f.fragments)+1)
	go func() {
		defer close(ch)
		for i, text := range f.fragments {
			if f.failAfter >= 0 && i == f.failAfter {
				ch <- llm.Fragment{Error: errors.New("backend dropped the stream")}
				return
			}
			ch <- llm.Fragment{Text: text}
		}
	}()
	return ch, nil
}

type fakeSynth struct {
	wavPath string
	err     error
	calls   int
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (string, error) {
	f.calls++
	return f.wavPath, f.err
}

type fakeAnimator struct {
	videoPath string
	err       error
	calls     int
	wavPaths  []string
}

func (f *fakeAnimator) Animate(ctx context.Context, wavPath string) (string, error) {
	f.calls++
	f.wavPaths = append(f.wavPaths, wavPath)
	return f.videoPath, f.err
}

type fakeAgent struct {
	answer  string
	handled bool
	err     error
	queries []agent.Query
}

func (f *fakeAgent) Answer(ctx context.Context, q agent.Query) (string, bool, error) {
	f.queries = append(f.queries, q)
	return f.answer, f.handled, f.err
}

type fakeRetriever struct {
	passages []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	return f.passages, nil
}

func newTestSession(tts, agentOn, rag bool) *session.Session {
	return newToggledSession(state.NewToggles(tts, false, agentOn, rag))
}

func newToggledSession(toggles *state.Toggles) *session.Session {
	store := session.NewStore()
	s := store.Create("你是乐乐喵。", toggles)
	conv := config.Conversation{
		Setting:           config.Setting{System: "sys", FirstInput: "请讲解：{product_info}"},
		ProductInfoStruct: []string{"商品名是{name}。", "亮点是{highlights}。"},
	}
	s.SelectItem(catalog.Item{Name: "手机", ID: 1, DeparturePlace: "深圳", DeliveryCompany: "顺丰"}, "快、薄", conv)
	return s
}

func newOrchestrator(gen orchestrator.Generator, opts func(*orchestrator.Settings)) *orchestrator.Orchestrator {
	s := orchestrator.Settings{
		Logger:    zap.NewNop().Sugar(),
		Generator: gen,
	}
	if opts != nil {
		opts(&s)
	}
	return orchestrator.New(s)
}

func TestTranscriptArithmetic(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"好的", "家人们"}, failAfter: -1}
	o := newOrchestrator(gen, nil)
	sess := newTestSession(false, false, false)

	if _, err := o.OpenConversation(context.Background(), sess, nil); err != nil {
		t.Fatal(err)
	}
	if got := sess.TranscriptLen(); got != 1 {
		t.Fatalf("opening turn: transcript len %d, want 1", got)
	}

	const turns = 3
	for i := 0; i < turns; i++ {
		if _, err := o.HandleTurn(context.Background(), sess, "多少钱", false, nil); err != nil {
			t.Fatal(err)
		}
	}
	if got, want := sess.TranscriptLen(), 2*turns+1; got != want {
		t.Fatalf("after %d turns: transcript len %d, want %d", turns, got, want)
	}
}

func TestFirstTurnNotCommittedAsUser(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"开场白"}, failAfter: -1}
	o := newOrchestrator(gen, nil)
	sess := newTestSession(false, false, false)

	if _, err := o.OpenConversation(context.Background(), sess, nil); err != nil {
		t.Fatal(err)
	}

	transcript := sess.Transcript()
	if len(transcript) != 1 || transcript[0].Role != session.RoleAssistant {
		t.Fatalf("unexpected transcript %+v", transcript)
	}

	// The opening template still has to reach the model as the user input.
	req := gen.requests[0]
	if req[len(req)-1].Role != string(session.RoleUser) || !strings.Contains(req[len(req)-1].Content, "手机") {
		t.Fatalf("opening prompt missing from request: %+v", req)
	}
}

func TestFragmentFold(t *testing.T) {
	const full = "家人们，这款手机超赞！"
	partitions := [][]string{
		{full},
		{"家人们，", "这款手机", "超赞！"},
		strings.Split(full, ""),
	}

	for i, parts := range partitions {
		gen := &fakeGenerator{fragments: parts, failAfter: -1}
		o := newOrchestrator(gen, nil)
		sess := newTestSession(false, false, false)

		var emitted strings.Builder
		final, err := o.HandleTurn(context.Background(), sess, "介绍一下", false, func(f string) { emitted.WriteString(f) })
		if err != nil {
			t.Fatal(err)
		}
		if final != full {
			t.Fatalf("partition %d: final %q, want %q", i, final, full)
		}
		if emitted.String() != full {
			t.Fatalf("partition %d: emitted %q, want %q", i, emitted.String(), full)
		}
		if got := sess.Transcript()[sess.TranscriptLen()-1].Content; got != full {
			t.Fatalf("partition %d: committed %q, want %q", i, got, full)
		}
	}
}

func TestMidStreamFailureCommitsPartial(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"第一段", "第二段", "不会到达"}, failAfter: 2}
	synth := &fakeSynth{wavPath: "out.wav"}
	o := newOrchestrator(gen, func(s *orchestrator.Settings) { s.Synthesizer = synth })
	sess := newTestSession(true, false, false)

	final, err := o.HandleTurn(context.Background(), sess, "多少钱", false, nil)
	if !errors.Is(err, orchestrator.ErrStreamInterrupted) {
		t.Fatalf("expected ErrStreamInterrupted, got %v", err)
	}
	if final != "第一段第二段" {
		t.Fatalf("partial text %q", final)
	}

	transcript := sess.Transcript()
	last := transcript[len(transcript)-1]
	if last.Role != session.RoleAssistant || last.Content != "第一段第二段" {
		t.Fatalf("partial not committed: %+v", last)
	}
	if synth.calls != 0 {
		t.Fatal("synthesis attempted on interrupted turn")
	}
}

func TestSynthesis(t *testing.T) {
	t.Run("attaches artifact to assistant turn", func(t *testing.T) {
		gen := &fakeGenerator{fragments: []string{"回复"}, failAfter: -1}
		synth := &fakeSynth{wavPath: "work_dirs/tts_wavs/a.wav"}
		o := newOrchestrator(gen, func(s *orchestrator.Settings) { s.Synthesizer = synth })
		sess := newTestSession(true, false, false)

		if _, err := o.HandleTurn(context.Background(), sess, "hi", false, nil); err != nil {
			t.Fatal(err)
		}
		transcript := sess.Transcript()
		if transcript[len(transcript)-1].AudioPath != synth.wavPath {
			t.Fatal("audio artifact not attached")
		}
	})

	t.Run("failure keeps the text turn", func(t *testing.T) {
		gen := &fakeGenerator{fragments: []string{"回复"}, failAfter: -1}
		synth := &fakeSynth{err: errors.New("vocoder down")}
		o := newOrchestrator(gen, func(s *orchestrator.Settings) { s.Synthesizer = synth })
		sess := newTestSession(true, false, false)

		final, err := o.HandleTurn(context.Background(), sess, "hi", false, nil)
		if err != nil {
			t.Fatalf("synthesis failure must be non-fatal, got %v", err)
		}
		transcript := sess.Transcript()
		last := transcript[len(transcript)-1]
		if last.Content != final || last.AudioPath != "" {
			t.Fatalf("unexpected turn %+v", last)
		}
	})

	t.Run("disabled toggle skips synthesis", func(t *testing.T) {
		gen := &fakeGenerator{fragments: []string{"回复"}, failAfter: -1}
		synth := &fakeSynth{wavPath: "a.wav"}
		o := newOrchestrator(gen, func(s *orchestrator.Settings) { s.Synthesizer = synth })
		sess := newTestSession(false, false, false)

		if _, err := o.HandleTurn(context.Background(), sess, "hi", false, nil); err != nil {
			t.Fatal(err)
		}
		if synth.calls != 0 {
			t.Fatal("synthesis ran with TTS off")
		}
	})
}

func TestAnimation(t *testing.T) {
	t.Run("attaches video rendered from the wav", func(t *testing.T) {
		gen := &fakeGenerator{fragments: []string{"回复"}, failAfter: -1}
		synth := &fakeSynth{wavPath: "work_dirs/tts_wavs/a.wav"}
		anim := &fakeAnimator{videoPath: "work_dirs/digital_human/a.mp4"}
		o := newOrchestrator(gen, func(s *orchestrator.Settings) {
			s.Synthesizer = synth
			s.Animator = anim
		})
		sess := newToggledSession(state.NewToggles(true, true, false, false))

		if _, err := o.HandleTurn(context.Background(), sess, "hi", false, nil); err != nil {
			t.Fatal(err)
		}
		transcript := sess.Transcript()
		last := transcript[len(transcript)-1]
		if last.AudioPath != synth.wavPath || last.VideoPath != anim.videoPath {
			t.Fatalf("unexpected artifacts %+v", last)
		}
		if len(anim.wavPaths) != 1 || anim.wavPaths[0] != synth.wavPath {
			t.Fatalf("animator fed %v, want the synthesized wav", anim.wavPaths)
		}
	})

	t.Run("failure keeps text and audio", func(t *testing.T) {
		gen := &fakeGenerator{fragments: []string{"回复"}, failAfter: -1}
		synth := &fakeSynth{wavPath: "a.wav"}
		anim := &fakeAnimator{err: errors.New("renderer down")}
		o := newOrchestrator(gen, func(s *orchestrator.Settings) {
			s.Synthesizer = synth
			s.Animator = anim
		})
		sess := newToggledSession(state.NewToggles(true, true, false, false))

		final, err := o.HandleTurn(context.Background(), sess, "hi", false, nil)
		if err != nil {
			t.Fatalf("animation failure must be non-fatal, got %v", err)
		}
		transcript := sess.Transcript()
		last := transcript[len(transcript)-1]
		if last.Content != final || last.AudioPath != synth.wavPath || last.VideoPath != "" {
			t.Fatalf("unexpected turn %+v", last)
		}
	})

	t.Run("disabled toggle skips the render", func(t *testing.T) {
		gen := &fakeGenerator{fragments: []string{"回复"}, failAfter: -1}
		synth := &fakeSynth{wavPath: "a.wav"}
		anim := &fakeAnimator{videoPath: "a.mp4"}
		o := newOrchestrator(gen, func(s *orchestrator.Settings) {
			s.Synthesizer = synth
			s.Animator = anim
		})
		sess := newToggledSession(state.NewToggles(true, false, false, false))

		if _, err := o.HandleTurn(context.Background(), sess, "hi", false, nil); err != nil {
			t.Fatal(err)
		}
		if anim.calls != 0 {
			t.Fatal("animation ran with the avatar off")
		}
	})

	t.Run("no wav means no render", func(t *testing.T) {
		gen := &fakeGenerator{fragments: []string{"回复"}, failAfter: -1}
		synth := &fakeSynth{err: errors.New("vocoder down")}
		anim := &fakeAnimator{videoPath: "a.mp4"}
		o := newOrchestrator(gen, func(s *orchestrator.Settings) {
			s.Synthesizer = synth
			s.Animator = anim
		})
		sess := newToggledSession(state.NewToggles(true, true, false, false))

		if _, err := o.HandleTurn(context.Background(), sess, "hi", false, nil); err != nil {
			t.Fatal(err)
		}
		if anim.calls != 0 {
			t.Fatal("animation ran without a wav artifact")
		}
	})
}

func TestAgentPath(t *testing.T) {
	t.Run("handled query skips the model", func(t *testing.T) {
		gen := &fakeGenerator{fragments: []string{"不该出现"}, failAfter: -1}
		ag := &fakeAgent{answer: "预计后天送达。", handled: true}
		o := newOrchestrator(gen, func(s *orchestrator.Settings) { s.ToolAgent = ag })
		sess := newTestSession(false, true, false)

		final, err := o.HandleTurn(context.Background(), sess, "什么时候到货", false, nil)
		if err != nil {
			t.Fatal(err)
		}
		if final != "预计后天送达。" {
			t.Fatalf("got %q", final)
		}
		if len(gen.requests) != 0 {
			t.Fatal("model consulted although the agent handled the query")
		}
		if ag.queries[0].DeparturePlace != "深圳" || ag.queries[0].DeliveryCompany != "顺丰" {
			t.Fatalf("item fields missing from agent query: %+v", ag.queries[0])
		}
	})

	t.Run("agent error falls back to generation", func(t *testing.T) {
		gen := &fakeGenerator{fragments: []string{"模型回复"}, failAfter: -1}
		ag := &fakeAgent{err: errors.New("tools down")}
		o := newOrchestrator(gen, func(s *orchestrator.Settings) { s.ToolAgent = ag })
		sess := newTestSession(false, true, false)

		final, err := o.HandleTurn(context.Background(), sess, "什么时候到货", false, nil)
		if err != nil {
			t.Fatal(err)
		}
		if final != "模型回复" {
			t.Fatalf("fallback did not run: %q", final)
		}
	})
}

func TestRetrievalSplice(t *testing.T) {
	gen := &fakeGenerator{fragments: []string{"回复"}, failAfter: -1}
	o := newOrchestrator(gen, func(s *orchestrator.Settings) {
		s.Lookup = func(storeID string) (orchestrator.Retriever, error) {
			if storeID != "default" {
				t.Fatalf("unexpected store id %s", storeID)
			}
			return &fakeRetriever{passages: []string{"支持五年质保", "重量 150g"}}, nil
		}
	})
	sess := newTestSession(false, false, true)

	if _, err := o.HandleTurn(context.Background(), sess, "保修多久", false, nil); err != nil {
		t.Fatal(err)
	}

	req := gen.requests[0]
	outgoing := req[len(req)-1].Content
	if !strings.Contains(outgoing, "五年质保") || !strings.Contains(outgoing, "保修多久") {
		t.Fatalf("passages not spliced into request: %q", outgoing)
	}

	// Transcript keeps the user's words verbatim.
	userTurn := sess.Transcript()[0]
	if userTurn.Content != "保修多久" {
		t.Fatalf("transcript polluted by splice: %q", userTurn.Content)
	}
}
