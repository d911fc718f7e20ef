// Package orchestrator assembles the model request for each conversation
// turn, folds the streamed reply into the transcript and hands committed
// turns to the interested workers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/streamersales/goCollectionAgent/business/session"
	"github.com/streamersales/goCollectionAgent/foundation/external/agent"
	"github.com/streamersales/goCollectionAgent/foundation/external/llm"
	"github.com/streamersales/goCollectionAgent/foundation/pubsub"
	"github.com/streamersales/goCollectionAgent/foundation/state"
	"go.uber.org/zap"
)

// ErrStreamInterrupted reports a generation stream that failed mid-way.
// The text accumulated before the failure is already committed to the
// transcript; the condition is recoverable and the session stays usable.
var ErrStreamInterrupted = errors.New("generation stream interrupted")

// Generator streams text fragments for an assembled turn context.
type Generator interface {
	StreamChat(ctx context.Context, messages []llm.Message) (<-chan llm.Fragment, error)
}

// Synthesizer voices a committed reply. Best-effort.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Animator renders a lip-synced avatar clip from a wav artifact.
// Best-effort, and only reachable through a successful synthesis.
type Animator interface {
	Animate(ctx context.Context, wavPath string) (string, error)
}

// Retriever returns the top-k passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// ToolAgent may answer a query through external lookups before the model
// is consulted.
type ToolAgent interface {
	Answer(ctx context.Context, q agent.Query) (answer string, handled bool, err error)
}

// TurnEvent is published on the broker for every committed turn.
type TurnEvent struct {
	SessionID string       `json:"session_id"`
	Turn      session.Turn `json:"turn"`
}

type Settings struct {
	Logger      *zap.SugaredLogger
	Generator   Generator
	Synthesizer Synthesizer
	Animator    Animator
	ToolAgent   ToolAgent
	Broker      *pubsub.Broker

	// Lookup resolves the current retrieval handle per turn so an index
	// rebuild swapped into the registry is picked up immediately. Nil or
	// an erroring lookup disables augmentation for the turn.
	Lookup func(storeID string) (Retriever, error)

	TopK            int
	UserAvatar      string
	AssistantAvatar string
}

type Orchestrator struct {
	s Settings
}

func New(s Settings) *Orchestrator {
	if s.TopK <= 0 {
		s.TopK = 3
	}
	return &Orchestrator{s: s}
}

// HandleTurn runs one conversation turn and returns the final assistant
// text.
//
// On the first turn the prompt is the pre-bound opening template; it is
// sent to the model but never committed as a user turn, so the avatar
// opens the conversation unprompted. Every later turn commits the user
// turn before streaming begins.
//
// emit, when non-nil, receives each response fragment in arrival order
// for incremental display.
func (o *Orchestrator) HandleTurn(ctx context.Context, sess *session.Session, prompt string, firstTurn bool, emit func(fragment string)) (string, error) {
	sess.BeginTurn()
	defer sess.EndTurn()

	history := sess.Transcript()

	if !firstTurn {
		o.commit(sess, session.Turn{Role: session.RoleUser, Content: prompt, Avatar: o.s.UserAvatar})
	}

	if !firstTurn && sess.Toggles.Get(state.Agent) && o.s.ToolAgent != nil {
		if answer, handled := o.tryAgent(ctx, sess, prompt); handled {
			o.commit(sess, session.Turn{Role: session.RoleAssistant, Content: answer, Avatar: o.s.AssistantAvatar})
			o.synthesize(ctx, sess, answer)
			return answer, nil
		}
	}

	requestText := prompt
	if !firstTurn && sess.Toggles.Get(state.Rag) {
		requestText = o.augment(ctx, prompt)
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: string(session.RoleSystem), Content: sess.SystemPrompt()})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: string(session.RoleUser), Content: requestText})

	fragmentCh, err := o.s.Generator.StreamChat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("starting generation: %w", err)
	}

	// Fragments arrive lazily and are consumed exactly once; concatenating
	// them in arrival order is the only correct reconstruction.
	var reply strings.Builder
	var streamErr error
	for fragment := range fragmentCh {
		if fragment.Error != nil {
			streamErr = fragment.Error
			break
		}
		reply.WriteString(fragment.Text)
		if emit != nil {
			emit(fragment.Text)
		}
	}

	final := reply.String()
	o.commit(sess, session.Turn{Role: session.RoleAssistant, Content: final, Avatar: o.s.AssistantAvatar})

	if streamErr != nil {
		o.s.Logger.Errorw("orchestrator: HandleTurn: stream failed, partial reply committed",
			"sessionID", sess.ID, "committedBytes", len(final), "ERROR", streamErr)
		return final, fmt.Errorf("%w: %v", ErrStreamInterrupted, streamErr)
	}

	o.synthesize(ctx, sess, final)

	return final, nil
}

// OpenConversation produces the unprompted opening turn for a fresh
// transcript.
func (o *Orchestrator) OpenConversation(ctx context.Context, sess *session.Session, emit func(fragment string)) (string, error) {
	return o.HandleTurn(ctx, sess, sess.FirstInput(), true, emit)
}

func (o *Orchestrator) commit(sess *session.Session, turn session.Turn) {
	sess.Append(turn)
	if o.s.Broker != nil {
		o.s.Broker.Publish(pubsub.TurnCommittedTopic, TurnEvent{SessionID: sess.ID, Turn: turn})
	}
}

// tryAgent routes the query through the tool-use layer. Any failure falls
// back to the plain generation path.
func (o *Orchestrator) tryAgent(ctx context.Context, sess *session.Session, prompt string) (string, bool) {
	q := agent.Query{Text: prompt}
	if item, ok := sess.ActiveItem(); ok {
		q.DeparturePlace = item.DeparturePlace
		q.DeliveryCompany = item.DeliveryCompany
	}

	answer, handled, err := o.s.ToolAgent.Answer(ctx, q)
	if err != nil {
		o.s.Logger.Errorw("orchestrator: tryAgent", "sessionID", sess.ID, "ERROR", err)
		return "", false
	}
	return answer, handled
}

// augment splices retrieved passages into the outgoing message only; the
// transcript keeps the user's words verbatim.
func (o *Orchestrator) augment(ctx context.Context, prompt string) string {
	if o.s.Lookup == nil {
		return prompt
	}

	handle, err := o.s.Lookup("default")
	if err != nil {
		o.s.Logger.Errorw("orchestrator: augment", "ERROR", err)
		return prompt
	}

	passages, err := handle.Retrieve(ctx, prompt, o.s.TopK)
	if err != nil {
		o.s.Logger.Errorw("orchestrator: augment", "ERROR", err)
		return prompt
	}
	if len(passages) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString("以下是可参考的资料：\n")
	for _, p := range passages {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(prompt)
	return b.String()
}

// synthesize attaches a voice clip to the just-committed reply. A failure
// never rolls back the text turn.
func (o *Orchestrator) synthesize(ctx context.Context, sess *session.Session, text string) {
	if o.s.Synthesizer == nil || !sess.Toggles.Get(state.Tts) || text == "" {
		return
	}

	wavPath, err := o.s.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		o.s.Logger.Errorw("orchestrator: synthesize", "sessionID", sess.ID, "ERROR", err)
		return
	}
	sess.AttachAudio(wavPath)

	o.animate(ctx, sess, wavPath)
}

// animate renders the avatar clip for the wav just attached. A failure
// leaves the turn with text and audio only.
func (o *Orchestrator) animate(ctx context.Context, sess *session.Session, wavPath string) {
	if o.s.Animator == nil || !sess.Toggles.Get(state.DigitalHuman) {
		return
	}

	videoPath, err := o.s.Animator.Animate(ctx, wavPath)
	if err != nil {
		o.s.Logger.Errorw("orchestrator: animate", "sessionID", sess.ID, "ERROR", err)
		return
	}
	sess.AttachVideo(videoPath)
}
