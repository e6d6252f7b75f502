package voices

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxbridge/voxbridge/internal/engine"
)

func TestLookupAllDefaultVoices(t *testing.T) {
	reg, err := New(nil, "ref")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, name := range reg.Names() {
		entry, err := reg.Lookup(name)
		if err != nil {
			t.Errorf("Lookup(%q) failed: %v", name, err)
			continue
		}
		if entry.Engine == "" || entry.Language == "" || entry.RefAudio == "" {
			t.Errorf("Voice %q has empty fields: %+v", name, entry)
		}
	}
}

func TestDefaultTableEngineAssignment(t *testing.T) {
	reg, err := New(nil, "ref")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	cases := []struct {
		voice    string
		kind     engine.Kind
		language string
	}{
		{"Charlotte", engine.KindChatterbox, "en"},
		{"Hamilton", engine.KindChatterbox, "en"},
		{"Noel", engine.KindXTTS, "es"},
		{"Pilar", engine.KindXTTS, "es"},
		{"Paulo", engine.KindXTTS, "pt"},
		{"Ines", engine.KindXTTS, "pt"},
	}
	for _, tc := range cases {
		entry, err := reg.Lookup(tc.voice)
		if err != nil {
			t.Fatalf("Lookup(%q) failed: %v", tc.voice, err)
		}
		if entry.Engine != tc.kind {
			t.Errorf("Voice %q: expected engine %q, got %q", tc.voice, tc.kind, entry.Engine)
		}
		if entry.Language != tc.language {
			t.Errorf("Voice %q: expected language %q, got %q", tc.voice, tc.language, entry.Language)
		}
	}
}

func TestLookupUnknownVoice(t *testing.T) {
	reg, err := New(nil, "ref")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = reg.Lookup("NonexistentVoice")
	if !errors.Is(err, ErrVoiceNotFound) {
		t.Fatalf("Expected ErrVoiceNotFound, got: %v", err)
	}
	if !strings.Contains(err.Error(), "NonexistentVoice") {
		t.Errorf("Error should name the unknown voice: %v", err)
	}
}

func TestLookupSuggestsCloseMatch(t *testing.T) {
	reg, err := New(nil, "ref")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = reg.Lookup("Charlote")
	if !errors.Is(err, ErrVoiceNotFound) {
		t.Fatalf("Expected ErrVoiceNotFound, got: %v", err)
	}
	if !strings.Contains(err.Error(), "Charlotte") {
		t.Errorf("Expected a did-you-mean hint for Charlotte, got: %v", err)
	}
}

func TestLookupByRefAudio(t *testing.T) {
	reg, err := New(nil, "ref")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// Legacy clients vary in how they spell the file name
	for _, filename := range []string{"Paulo.WAV", "Paulo.wav", "Paulo"} {
		entry, err := reg.LookupByRefAudio(filename)
		if err != nil {
			t.Errorf("LookupByRefAudio(%q) failed: %v", filename, err)
			continue
		}
		if entry.Name != "Paulo" {
			t.Errorf("LookupByRefAudio(%q): expected Paulo, got %q", filename, entry.Name)
		}
	}

	for _, filename := range []string{"Ghost.WAV", "Ghost.wav", "Ghost"} {
		if _, err := reg.LookupByRefAudio(filename); !errors.Is(err, ErrVoiceNotFound) {
			t.Errorf("LookupByRefAudio(%q): expected ErrVoiceNotFound, got: %v", filename, err)
		}
	}
}

func TestNewRejectsInvalidEntries(t *testing.T) {
	cases := []struct {
		name    string
		entries []Entry
	}{
		{"missing name", []Entry{{Engine: engine.KindXTTS, Language: "pt", RefAudio: "a.wav"}}},
		{"missing language", []Entry{{Name: "A", Engine: engine.KindXTTS, RefAudio: "a.wav"}}},
		{"missing ref audio", []Entry{{Name: "A", Engine: engine.KindXTTS, Language: "pt"}}},
		{"bad engine", []Entry{{Name: "A", Engine: "espeak", Language: "pt", RefAudio: "a.wav"}}},
		{"duplicate", []Entry{
			{Name: "A", Engine: engine.KindXTTS, Language: "pt", RefAudio: "a.wav"},
			{Name: "A", Engine: engine.KindXTTS, Language: "es", RefAudio: "b.wav"},
		}},
	}
	for _, tc := range cases {
		if _, err := New(tc.entries, "ref"); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestReferenceAudioPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Paulo.WAV"), []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}

	reg, err := New(nil, dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	paulo, _ := reg.Lookup("Paulo")
	path, err := reg.ReferenceAudioPath(paulo)
	if err != nil {
		t.Fatalf("ReferenceAudioPath failed: %v", err)
	}
	if path != filepath.Join(dir, "Paulo.WAV") {
		t.Errorf("Unexpected path %q", path)
	}

	ines, _ := reg.Lookup("Ines")
	if _, err := reg.ReferenceAudioPath(ines); !errors.Is(err, ErrReferenceAudioMissing) {
		t.Errorf("Expected ErrReferenceAudioMissing, got: %v", err)
	}
}

func TestNamesSorted(t *testing.T) {
	reg, err := New(nil, "ref")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	names := reg.Names()
	if len(names) != 6 {
		t.Fatalf("Expected 6 default voices, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("Names not sorted: %v", names)
		}
	}
}
