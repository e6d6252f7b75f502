// Package voices holds the static table mapping voice names to synthesis
// engines, languages and reference audio samples.
package voices

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schollz/closestmatch"

	"github.com/voxbridge/voxbridge/internal/engine"
)

var (
	ErrVoiceNotFound         = errors.New("unknown voice")
	ErrReferenceAudioMissing = errors.New("reference audio not found")
)

// Entry describes one registered voice. Entries are immutable: the table is
// built once at startup and never mutated afterwards.
type Entry struct {
	Name     string      `json:"name"`
	Engine   engine.Kind `json:"engine"`
	Language string      `json:"language"` // ISO-639-1
	RefAudio string      `json:"ref_audio"`
	Gender   string      `json:"gender"` // informational only
}

// Registry is a fixed voice table plus the directory its reference samples
// live in. Lookup is pure; the only filesystem touch is ReferenceAudioPath.
type Registry struct {
	entries map[string]Entry
	refDir  string
	matcher *closestmatch.ClosestMatch
}

// DefaultEntries is the built-in voice table: Chatterbox handles the English
// voices, XTTS the Spanish and Portuguese ones.
func DefaultEntries() []Entry {
	return []Entry{
		{Name: "Charlotte", Engine: engine.KindChatterbox, Language: "en", RefAudio: "Charlotte.WAV", Gender: "female"},
		{Name: "Hamilton", Engine: engine.KindChatterbox, Language: "en", RefAudio: "Hamilton.WAV", Gender: "male"},
		{Name: "Noel", Engine: engine.KindXTTS, Language: "es", RefAudio: "Noel.WAV", Gender: "male"},
		{Name: "Pilar", Engine: engine.KindXTTS, Language: "es", RefAudio: "Pilar.WAV", Gender: "female"},
		{Name: "Paulo", Engine: engine.KindXTTS, Language: "pt", RefAudio: "Paulo.WAV", Gender: "male"},
		{Name: "Ines", Engine: engine.KindXTTS, Language: "pt", RefAudio: "Ines.WAV", Gender: "female"},
	}
}

// New builds a registry from the given entries. Entries with missing fields
// are rejected so a bad config cannot produce half-usable voices.
func New(entries []Entry, refDir string) (*Registry, error) {
	if len(entries) == 0 {
		entries = DefaultEntries()
	}

	table := make(map[string]Entry, len(entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" || e.Engine == "" || e.Language == "" || e.RefAudio == "" {
			return nil, fmt.Errorf("invalid voice entry %+v: name, engine, language and ref_audio are required", e)
		}
		if !e.Engine.Valid() {
			return nil, fmt.Errorf("voice %s: unknown engine kind %q", e.Name, e.Engine)
		}
		if _, dup := table[e.Name]; dup {
			return nil, fmt.Errorf("duplicate voice entry %q", e.Name)
		}
		table[e.Name] = e
		names = append(names, e.Name)
	}

	return &Registry{
		entries: table,
		refDir:  refDir,
		matcher: closestmatch.New(names, []int{2}),
	}, nil
}

// Lookup resolves a voice name. Unknown names return ErrVoiceNotFound with a
// did-you-mean hint when one is close enough to be useful.
func (r *Registry) Lookup(name string) (Entry, error) {
	entry, ok := r.entries[name]
	if !ok {
		if suggestion := r.matcher.Closest(name); suggestion != "" {
			return Entry{}, fmt.Errorf("%w: %q (did you mean %q?)", ErrVoiceNotFound, name, suggestion)
		}
		return Entry{}, fmt.Errorf("%w: %q", ErrVoiceNotFound, name)
	}
	return entry, nil
}

// LookupByRefAudio resolves the voice registered for a reference audio file
// name. The legacy API addresses voices this way; old clients send the
// extension in either case ("Ines.WAV", "Ines.wav") or omit it entirely, so
// resolution trims a .wav suffix case-insensitively and matches the voice
// name, falling back to an exact match on the registered file name.
func (r *Registry) LookupByRefAudio(filename string) (Entry, error) {
	name := filename
	if ext := filepath.Ext(filename); strings.EqualFold(ext, ".wav") {
		name = strings.TrimSuffix(filename, ext)
	}
	if entry, ok := r.entries[name]; ok {
		return entry, nil
	}
	for _, e := range r.entries {
		if e.RefAudio == filename {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: no voice registered for reference audio %q", ErrVoiceNotFound, filename)
}

// ReferenceAudioPath resolves the on-disk sample for a voice and verifies it
// exists. A registered voice with a missing sample is a server-side problem,
// not a client one.
func (r *Registry) ReferenceAudioPath(entry Entry) (string, error) {
	path := filepath.Join(r.refDir, entry.RefAudio)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrReferenceAudioMissing, path)
	}
	return path, nil
}

// Names returns all registered voice names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns all registered entries, sorted by name.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, 0, len(r.entries))
	for _, name := range r.Names() {
		entries = append(entries, r.entries[name])
	}
	return entries
}
