// Package session holds the per-user conversation state: the selected
// item, the transcript, feature toggles, the pending page switch and the
// one-shot input channels feeding the turn multiplexer.
package session

import (
	"sync"

	"github.com/google/uuid"
	"github.com/streamersales/goCollectionAgent/foundation/catalog"
	"github.com/streamersales/goCollectionAgent/foundation/config"
	"github.com/streamersales/goCollectionAgent/foundation/state"
)

const (
	PageProducts = "products"
	PageChat     = "chat"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one committed transcript entry. AudioPath references the
// synthesized voice clip when TTS produced one for an assistant turn;
// VideoPath the lip-synced avatar clip rendered from that wav.
type Turn struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Avatar    string `json:"avatar,omitempty"`
	AudioPath string `json:"wav,omitempty"`
	VideoPath string `json:"video,omitempty"`
}

// Session is created on the first page visit and torn down on session
// end. All mutators hold the session mutex so a concurrent render never
// observes a partial update.
type Session struct {
	ID      string
	Toggles *state.Toggles

	// turnMu serializes turn processing: within one session turns are
	// strictly ordered by append time, never processed concurrently.
	turnMu sync.Mutex

	mu           sync.Mutex
	currentPage  string
	pendingPage  string
	systemPrompt string
	firstInput   string
	activeItem   *catalog.Item
	transcript   []Turn
	asrCache     string
	quickReply   string
}

func newSession(systemPrompt string, toggles *state.Toggles) *Session {
	return &Session{
		ID:           uuid.NewString(),
		Toggles:      toggles,
		currentPage:  PageProducts,
		pendingPage:  PageProducts,
		systemPrompt: systemPrompt,
	}
}

// SelectItem binds the item, renders the opening prompt from the
// conversation templates and clears the transcript, atomically.
func (s *Session) SelectItem(item catalog.Item, highlights string, conv config.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	productInfo := conv.ProductInfo(item.Name, highlights)

	s.activeItem = &item
	s.firstInput = conv.FirstInput(productInfo)
	s.transcript = nil
	s.pendingPage = PageChat
}

// ResetConversation clears the transcript but keeps the bound item, the
// rendered prompts and the feature toggles.
func (s *Session) ResetConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transcript = nil
}

func (s *Session) SystemPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemPrompt
}

func (s *Session) FirstInput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstInput
}

// ActiveItem returns the bound item, or false when none is selected.
func (s *Session) ActiveItem() (catalog.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeItem == nil {
		return catalog.Item{}, false
	}
	return *s.activeItem, true
}

// ChatReady reports whether the chat page has a bound context to work
// with. The chat page must bounce back to the catalog otherwise.
func (s *Session) ChatReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeItem != nil && s.firstInput != ""
}

// Go queues a page switch for the next cycle.
func (s *Session) Go(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingPage = page
}

// Advance applies a pending page switch and returns the current page and
// whether a switch happened. Re-advancing on the same page is a no-op.
func (s *Session) Advance() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingPage != s.currentPage {
		s.currentPage = s.pendingPage
		return s.currentPage, true
	}
	return s.currentPage, false
}

func (s *Session) CurrentPage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage
}

// Transcript returns a copy of the committed turns in append order.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

func (s *Session) TranscriptLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

func (s *Session) Append(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, turn)
}

// BeginTurn takes the turn lock for one full prompt/reply exchange.
func (s *Session) BeginTurn() {
	s.turnMu.Lock()
}

func (s *Session) EndTurn() {
	s.turnMu.Unlock()
}

// AttachAudio sets the audio artifact reference on the most recent turn.
// Synthesis finishing after the text commit must not touch earlier turns.
func (s *Session) AttachAudio(audioPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.transcript) == 0 {
		return
	}
	s.transcript[len(s.transcript)-1].AudioPath = audioPath
}

// AttachVideo sets the avatar video reference on the most recent turn.
func (s *Session) AttachVideo(videoPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.transcript) == 0 {
		return
	}
	s.transcript[len(s.transcript)-1].VideoPath = videoPath
}

// =====================================================================================================================

// Store holds the live sessions keyed by id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

func (st *Store) Create(systemPrompt string, toggles *state.Toggles) *Session {
	s := newSession(systemPrompt, toggles)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.sessions[s.ID] = s
	return s
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, exists := st.sessions[id]
	return s, exists
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.sessions, id)
}
