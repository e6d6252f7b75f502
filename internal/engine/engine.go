// Package engine loads and drives the underlying text-to-speech model
// families. Loading is lazy and memoized per (kind, language) key; each
// loaded handle serializes synthesis calls behind its own mutex because the
// model runtimes are not proven safe for concurrent invocation.
package engine

import (
	"context"
	"sync"

	"github.com/voxbridge/voxbridge/internal/audio"
)

// Kind identifies which model family handles a voice.
type Kind string

const (
	// KindXTTS is the multilingual voice-cloning family.
	KindXTTS Kind = "xtts"
	// KindChatterbox is the English reference-cloning family.
	KindChatterbox Kind = "chatterbox"
	// KindGoogle is the optional remote engine, available only when
	// credentials are configured.
	KindGoogle Kind = "google"
)

func (k Kind) Valid() bool {
	switch k {
	case KindXTTS, KindChatterbox, KindGoogle:
		return true
	}
	return false
}

// Key addresses one loaded model: multilingual families hold one handle per
// language, the rest share a single handle per kind.
type Key struct {
	Kind     Kind
	Language string
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.Language
}

// Capabilities describes what a loaded model accepts. Resolved once at load
// time, never probed per call.
type Capabilities struct {
	SupportsLanguage       bool
	SupportsReferenceAudio bool
}

// Synthesizer is the capability set every adapter implements. The language
// is bound at load time, so a call carries only text and the reference
// sample path.
type Synthesizer interface {
	SynthesizeToBuffer(ctx context.Context, text, refAudioPath string) (audio.Waveform, error)
}

// Handle is a ready-to-use model owned by the registry for the process
// lifetime. All synthesis through one handle is serialized.
type Handle struct {
	Key   Key
	Model string // name of the chain candidate that actually loaded
	Caps  Capabilities

	synth Synthesizer
	mu    sync.Mutex
}

// Synthesize runs one synthesis call under the handle lock.
func (h *Handle) Synthesize(ctx context.Context, text, refAudioPath string) (audio.Waveform, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.synth.SynthesizeToBuffer(ctx, text, refAudioPath)
}
