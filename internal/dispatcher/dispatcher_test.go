package dispatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxbridge/voxbridge/internal/audio"
	"github.com/voxbridge/voxbridge/internal/engine"
	"github.com/voxbridge/voxbridge/internal/logger"
	"github.com/voxbridge/voxbridge/internal/voices"
)

type recordingSynth struct {
	lastText    string
	lastRefPath string
	fail        error
}

func (r *recordingSynth) SynthesizeToBuffer(ctx context.Context, text, refAudioPath string) (audio.Waveform, error) {
	r.lastText = text
	r.lastRefPath = refAudioPath
	if r.fail != nil {
		return audio.Waveform{}, r.fail
	}
	return audio.Waveform{Samples: []float32{0.1, -0.1, 0.2}, SampleRate: 24000}, nil
}

func newTestDispatcher(t *testing.T, synth engine.Synthesizer) *Dispatcher {
	t.Helper()

	refDir := t.TempDir()
	for _, name := range []string{"Charlotte.WAV", "Paulo.WAV"} {
		if err := os.WriteFile(filepath.Join(refDir, name), []byte("RIFF"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	vreg, err := voices.New(nil, refDir)
	if err != nil {
		t.Fatalf("voices.New failed: %v", err)
	}

	log := logger.New()
	ereg := engine.NewRegistry(log)
	loader := func(language string) (engine.Synthesizer, engine.Capabilities, error) {
		return synth, engine.Capabilities{SupportsReferenceAudio: true}, nil
	}
	ereg.RegisterChain(engine.KindXTTS, engine.Chain{{Name: "stub", Load: loader}})
	ereg.RegisterChain(engine.KindChatterbox, engine.Chain{{Name: "stub", Load: loader}})

	return New(vreg, ereg, log)
}

func TestSanitizeText(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`He said "hello" there`, `He said hello there`},
		{`it's Paulo's turn`, `its Paulos turn`},
		{`"'"`, ``},
		{`no quotes at all`, `no quotes at all`},
		{``, ``},
		{"curly “quotes” survive", "curly “quotes” survive"},
	}
	for _, tc := range cases {
		if got := SanitizeText(tc.in); got != tc.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSynthesizeHappyPath(t *testing.T) {
	synth := &recordingSynth{}
	d := newTestDispatcher(t, synth)

	wf, entry, err := d.Synthesize(context.Background(), "Hello", "Paulo")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if entry.Name != "Paulo" || entry.Language != "pt" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if len(wf.Samples) == 0 || wf.SampleRate != 24000 {
		t.Errorf("Unexpected waveform: %d samples at %d Hz", len(wf.Samples), wf.SampleRate)
	}
	if !strings.HasSuffix(synth.lastRefPath, "Paulo.WAV") {
		t.Errorf("Adapter got wrong reference path: %q", synth.lastRefPath)
	}
}

func TestSynthesizeStripsQuotesBeforeAdapter(t *testing.T) {
	synth := &recordingSynth{}
	d := newTestDispatcher(t, synth)

	_, _, err := d.Synthesize(context.Background(), `say "this" and 'that'`, "Charlotte")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if strings.ContainsAny(synth.lastText, `"'`) {
		t.Errorf("Adapter received unsanitized text: %q", synth.lastText)
	}
}

func TestSynthesizeUnknownVoice(t *testing.T) {
	d := newTestDispatcher(t, &recordingSynth{})

	_, _, err := d.Synthesize(context.Background(), "Hi", "Unknown")
	if !errors.Is(err, voices.ErrVoiceNotFound) {
		t.Fatalf("Expected ErrVoiceNotFound, got: %v", err)
	}
}

func TestSynthesizeMissingReferenceAudio(t *testing.T) {
	d := newTestDispatcher(t, &recordingSynth{})

	// Ines is registered but newTestDispatcher only creates samples for
	// Charlotte and Paulo.
	_, _, err := d.Synthesize(context.Background(), "Oi", "Ines")
	if !errors.Is(err, voices.ErrReferenceAudioMissing) {
		t.Fatalf("Expected ErrReferenceAudioMissing, got: %v", err)
	}
}

func TestSynthesizeEngineFailure(t *testing.T) {
	synth := &recordingSynth{fail: errors.New("inference exploded")}
	d := newTestDispatcher(t, synth)

	_, _, err := d.Synthesize(context.Background(), "Hello", "Charlotte")
	if err == nil {
		t.Fatal("Expected error from failing engine")
	}
	if !strings.Contains(err.Error(), "inference exploded") {
		t.Errorf("Underlying error text should be preserved: %v", err)
	}
}

func TestSynthesizeEngineUnavailable(t *testing.T) {
	refDir := t.TempDir()
	os.WriteFile(filepath.Join(refDir, "Paulo.WAV"), []byte("RIFF"), 0644)

	vreg, err := voices.New(nil, refDir)
	if err != nil {
		t.Fatal(err)
	}
	log := logger.New()
	ereg := engine.NewRegistry(log)
	ereg.RegisterChain(engine.KindXTTS, engine.Chain{{
		Name: "broken",
		Load: func(language string) (engine.Synthesizer, engine.Capabilities, error) {
			return nil, engine.Capabilities{}, errors.New("weights missing")
		},
	}})

	d := New(vreg, ereg, log)
	_, _, err = d.Synthesize(context.Background(), "Oi", "Paulo")
	if !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Fatalf("Expected ErrEngineUnavailable, got: %v", err)
	}
}
