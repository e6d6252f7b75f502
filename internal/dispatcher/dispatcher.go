// Package dispatcher routes a synthesis request to the engine its voice is
// registered for.
package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/voxbridge/voxbridge/internal/audio"
	"github.com/voxbridge/voxbridge/internal/engine"
	"github.com/voxbridge/voxbridge/internal/logger"
	"github.com/voxbridge/voxbridge/internal/voices"
)

// Embedded quote characters have been observed to corrupt the downstream
// tokenizer, so they are stripped before synthesis. This is deliberately the
// only text normalization performed.
var quoteStripper = strings.NewReplacer(`"`, "", `'`, "")

// SanitizeText strips straight single and double quotes.
func SanitizeText(text string) string {
	return quoteStripper.Replace(text)
}

// Dispatcher wires the voice table to the engine registry. It holds no
// state of its own; everything interesting lives in the registries.
type Dispatcher struct {
	voices  *voices.Registry
	engines *engine.Registry
	log     *logger.Log
}

func New(v *voices.Registry, e *engine.Registry, log *logger.Log) *Dispatcher {
	return &Dispatcher{voices: v, engines: e, log: log}
}

// Synthesize produces a mono waveform for the given text in the given voice.
// The registry mapping decides engine and language; caller input never
// overrides it. The first call for an engine key blocks while the model
// loads (seconds); later calls reuse the cached handle.
func (d *Dispatcher) Synthesize(ctx context.Context, text, voiceName string) (audio.Waveform, voices.Entry, error) {
	entry, err := d.voices.Lookup(voiceName)
	if err != nil {
		return audio.Waveform{}, voices.Entry{}, err
	}

	refPath, err := d.voices.ReferenceAudioPath(entry)
	if err != nil {
		return audio.Waveform{}, entry, err
	}

	clean := SanitizeText(text)

	d.log.Infof("synthesizing for voice %q via %s/%s", entry.Name, entry.Engine, entry.Language)
	handle, err := d.engines.Load(entry.Engine, entry.Language)
	if err != nil {
		return audio.Waveform{}, entry, err
	}

	wf, err := handle.Synthesize(ctx, clean, refPath)
	if err != nil {
		return audio.Waveform{}, entry, fmt.Errorf("synthesis failed for voice %q: %w", entry.Name, err)
	}
	if len(wf.Samples) == 0 {
		return audio.Waveform{}, entry, fmt.Errorf("engine %s produced no audio for voice %q", handle.Key, entry.Name)
	}

	d.log.Debugf("voice %q: %d samples at %d Hz (%.2fs)",
		entry.Name, len(wf.Samples), wf.SampleRate, wf.Duration().Seconds())
	return wf, entry, nil
}

// Voices exposes the voice registry for the HTTP surface.
func (d *Dispatcher) Voices() *voices.Registry {
	return d.voices
}

// Engines exposes the engine registry for the HTTP surface.
func (d *Dispatcher) Engines() *engine.Registry {
	return d.engines
}
