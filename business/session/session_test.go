package session_test

import (
	"strings"
	"testing"

	"github.com/streamersales/goCollectionAgent/business/session"
	"github.com/streamersales/goCollectionAgent/foundation/catalog"
	"github.com/streamersales/goCollectionAgent/foundation/config"
	"github.com/streamersales/goCollectionAgent/foundation/state"
)

func testConversation() config.Conversation {
	return config.Conversation{
		RoleType: map[string][]string{"乐乐喵": {"甜美", "可爱"}},
		Setting: config.Setting{
			System:     "你是{role_type}，性格{character}。",
			FirstInput: "请讲解：{product_info}",
		},
		ProductInfoStruct: []string{"商品名是{name}。", "亮点是{highlights}。"},
	}
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	store := session.NewStore()
	return store.Create("system prompt", state.NewToggles(true, true, false, true))
}

func TestSelectItem(t *testing.T) {
	t.Run("binds item and renders opening prompt", func(t *testing.T) {
		t.Parallel()
		s := newTestSession(t)
		item := catalog.Item{Name: "手机", ID: 1, Highlights: []string{"快", "薄"}}

		s.Append(session.Turn{Role: session.RoleUser, Content: "stale"})
		s.SelectItem(item, strings.Join(item.Highlights, "、"), testConversation())

		if s.TranscriptLen() != 0 {
			t.Fatal("transcript not cleared by SelectItem")
		}
		first := s.FirstInput()
		for _, placeholder := range []string{"{name}", "{highlights}", "{product_info}"} {
			if strings.Contains(first, placeholder) {
				t.Fatalf("unsubstituted %s in %q", placeholder, first)
			}
		}
		if !strings.Contains(first, "手机") || !strings.Contains(first, "快、薄") {
			t.Fatalf("opening prompt missing item fields: %q", first)
		}
		if page, _ := s.Advance(); page != session.PageChat {
			t.Fatalf("expected chat page, on %s", page)
		}
	})

	t.Run("reset keeps bindings and toggles", func(t *testing.T) {
		t.Parallel()
		s := newTestSession(t)
		item := catalog.Item{Name: "手机", ID: 1, Highlights: []string{"快"}}
		s.SelectItem(item, "快", testConversation())
		s.Append(session.Turn{Role: session.RoleAssistant, Content: "hi"})
		s.Toggles.Set(state.Agent, true)

		s.ResetConversation()

		if s.TranscriptLen() != 0 {
			t.Fatal("transcript survived reset")
		}
		if s.FirstInput() == "" {
			t.Fatal("prompt binding lost on reset")
		}
		if !s.Toggles.Get(state.Agent) {
			t.Fatal("toggle lost on reset")
		}
	})
}

func TestNavigation(t *testing.T) {
	t.Run("switch is applied once", func(t *testing.T) {
		t.Parallel()
		s := newTestSession(t)
		s.Go(session.PageChat)

		page, switched := s.Advance()
		if page != session.PageChat || !switched {
			t.Fatalf("expected switch to chat, got %s switched=%v", page, switched)
		}

		// Re-entering the same page must not re-trigger a switch.
		page, switched = s.Advance()
		if page != session.PageChat || switched {
			t.Fatalf("idempotency broken: %s switched=%v", page, switched)
		}
	})

	t.Run("chat requires a bound item", func(t *testing.T) {
		t.Parallel()
		s := newTestSession(t)
		if s.ChatReady() {
			t.Fatal("chat ready without item")
		}
		s.SelectItem(catalog.Item{Name: "手机", ID: 1}, "", testConversation())
		if !s.ChatReady() {
			t.Fatal("chat not ready after select")
		}
	})
}

func TestNextPrompt(t *testing.T) {
	t.Run("quick reply wins and leaves asr cache alone", func(t *testing.T) {
		t.Parallel()
		s := newTestSession(t)
		s.QueueQuickReply("我今天就还款。")

		prompt, ok := s.NextPrompt("typed text", "语音转写")
		if !ok || prompt != "我今天就还款。" {
			t.Fatalf("got %q ok=%v", prompt, ok)
		}

		// The out-prioritized transcript must still be usable next cycle.
		prompt, ok = s.NextPrompt("", "语音转写")
		if !ok || prompt != "语音转写" {
			t.Fatalf("asr transcript was dropped: %q ok=%v", prompt, ok)
		}
	})

	t.Run("quick reply consumed once", func(t *testing.T) {
		t.Parallel()
		s := newTestSession(t)
		s.QueueQuickReply("我马上转账。")

		if _, ok := s.NextPrompt("", ""); !ok {
			t.Fatal("queued reply not emitted")
		}
		if _, ok := s.NextPrompt("", ""); ok {
			t.Fatal("quick reply fired twice")
		}
	})

	t.Run("stale asr does not refire", func(t *testing.T) {
		t.Parallel()
		s := newTestSession(t)

		if prompt, ok := s.NextPrompt("", "你好"); !ok || prompt != "你好" {
			t.Fatalf("fresh transcript not emitted: %q ok=%v", prompt, ok)
		}
		if _, ok := s.NextPrompt("", "你好"); ok {
			t.Fatal("same utterance fired twice across cycles")
		}
		if prompt, ok := s.NextPrompt("", "换个说法"); !ok || prompt != "换个说法" {
			t.Fatalf("changed transcript not emitted: %q ok=%v", prompt, ok)
		}
	})

	t.Run("typed text is the fallback", func(t *testing.T) {
		t.Parallel()
		s := newTestSession(t)
		if prompt, ok := s.NextPrompt("  有优惠吗  ", ""); !ok || prompt != "有优惠吗" {
			t.Fatalf("got %q ok=%v", prompt, ok)
		}
	})

	t.Run("no input no turn", func(t *testing.T) {
		t.Parallel()
		s := newTestSession(t)
		if _, ok := s.NextPrompt("", ""); ok {
			t.Fatal("turn fired with no input")
		}
	})
}

func TestStore(t *testing.T) {
	store := session.NewStore()
	s := store.Create("sys", state.NewToggles(false, false, false, false))

	got, exists := store.Get(s.ID)
	if !exists || got.ID != s.ID {
		t.Fatal("created session not found")
	}

	store.Delete(s.ID)
	if _, exists := store.Get(s.ID); exists {
		t.Fatal("session survived delete")
	}
}
