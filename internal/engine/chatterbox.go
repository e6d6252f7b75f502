package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/voxbridge/voxbridge/internal/audio"
	"github.com/voxbridge/voxbridge/internal/logger"
)

// Chatterbox is the adapter for the English reference-cloning family. It
// takes text and a reference sample only; there is no language conditioning.
type Chatterbox struct {
	model *onnxModel
	log   *logger.Log
}

// NewChatterboxLoader returns a LoadFunc for one model candidate in the
// chatterbox fallback chain.
func NewChatterboxLoader(modelPath string, sampleRate int, log *logger.Log) LoadFunc {
	return func(language string) (Synthesizer, Capabilities, error) {
		model, err := loadONNXModel(modelPath, sampleRate, log)
		if err != nil {
			return nil, Capabilities{}, err
		}
		if !model.caps.SupportsReferenceAudio {
			model.destroy()
			return nil, Capabilities{}, fmt.Errorf("model %s declares no reference audio input; not a cloning model", modelPath)
		}
		if model.caps.SupportsLanguage {
			model.destroy()
			return nil, Capabilities{}, fmt.Errorf("model %s declares a language input; it belongs in the xtts chain", modelPath)
		}
		return &Chatterbox{model: model, log: log}, model.caps, nil
	}
}

// SynthesizeToBuffer clones the reference voice saying the given text. The
// returned rate is whatever the loaded model was exported with.
func (c *Chatterbox) SynthesizeToBuffer(ctx context.Context, text, refAudioPath string) (audio.Waveform, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return audio.Waveform{}, fmt.Errorf("tokenization produced no tokens")
	}

	wf, err := audio.DecodeWAVFile(refAudioPath)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("failed to read reference audio: %w", err)
	}

	start := time.Now()
	samples, err := c.model.run(ctx, tokens, wf.Samples, -1)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("chatterbox generation failed: %w", err)
	}
	c.log.Debugf("chatterbox generated %d samples in %.2fs", len(samples), time.Since(start).Seconds())

	return audio.Waveform{Samples: samples, SampleRate: c.model.sampleRate}, nil
}
