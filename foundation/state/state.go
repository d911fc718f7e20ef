package state

import "sync"

type Feature int

const (
	Tts Feature = iota
	DigitalHuman
	Agent
	Rag
)

// Toggles holds the per-session feature switches. Each is independently
// togglable from the sidebar; defaults come from static configuration.
type Toggles struct {
	sync.RWMutex

	Tts          bool
	DigitalHuman bool
	Agent        bool
	Rag          bool
}

func NewToggles(tts, digitalHuman, agent, rag bool) *Toggles {
	return &Toggles{
		Tts:          tts,
		DigitalHuman: digitalHuman,
		Agent:        agent,
		Rag:          rag,
	}
}

func (t *Toggles) Get(f Feature) bool {
	t.RLock()
	defer t.RUnlock()
	{
		switch f {
		case Tts:
			return t.Tts

		case DigitalHuman:
			return t.DigitalHuman

		case Agent:
			return t.Agent

		case Rag:
			return t.Rag
		}
	}
	return false
}

func (t *Toggles) Set(f Feature, enabled bool) {
	t.Lock()
	defer t.Unlock()
	{
		switch f {
		case Tts:
			t.Tts = enabled

		case DigitalHuman:
			t.DigitalHuman = enabled

		case Agent:
			t.Agent = enabled

		case Rag:
			t.Rag = enabled
		}
	}
}
