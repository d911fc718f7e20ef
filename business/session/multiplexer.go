package session

import "strings"

// QueueQuickReply stages a canned reply for the next cycle. Only one is
// held; a later quick reply replaces an unconsumed one.
func (s *Session) QueueQuickReply(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quickReply = text
}

// NextPrompt arbitrates the three input channels into at most one prompt
// for this cycle. Precedence:
//
//  1. a queued quick reply, consumed and cleared atomically;
//  2. a fresh ASR transcript, meaning present and different from the
//     cached one; the cache is updated only when the transcript is used,
//     so a transcript out-prioritized by a quick reply is not dropped;
//  3. the typed free text.
//
// No input present means no turn fires this cycle.
func (s *Session) NextPrompt(typed string, asrText string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quickReply != "" {
		prompt := s.quickReply
		s.quickReply = ""
		return prompt, true
	}

	asrText = strings.TrimSpace(asrText)
	if asrText != "" && asrText != s.asrCache {
		s.asrCache = asrText
		return asrText, true
	}

	typed = strings.TrimSpace(typed)
	if typed != "" {
		return typed, true
	}

	return "", false
}
