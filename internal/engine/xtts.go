package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/voxbridge/voxbridge/internal/audio"
	"github.com/voxbridge/voxbridge/internal/logger"
)

// xttsLanguageIDs maps ISO-639-1 codes to the language embedding indices the
// multilingual exports were trained with.
var xttsLanguageIDs = map[string]int64{
	"en": 0,
	"es": 1,
	"fr": 2,
	"de": 3,
	"it": 4,
	"pt": 5,
	"pl": 6,
	"nl": 7,
	"cs": 8,
	"ru": 9,
}

// XTTS is the adapter for the multilingual voice-cloning family. One
// instance is bound to one language at load time.
type XTTS struct {
	model    *onnxModel
	language string
	langID   int64
	log      *logger.Log
}

// NewXTTSLoader returns a LoadFunc for one model candidate in the xtts
// fallback chain.
func NewXTTSLoader(modelPath string, sampleRate int, log *logger.Log) LoadFunc {
	return func(language string) (Synthesizer, Capabilities, error) {
		model, err := loadONNXModel(modelPath, sampleRate, log)
		if err != nil {
			return nil, Capabilities{}, err
		}

		// Some fallback exports are single-language and declare no
		// language input. That is fine: the language is simply not
		// attached at synthesis time.
		var langID int64 = -1
		if model.caps.SupportsLanguage {
			id, ok := xttsLanguageIDs[language]
			if !ok {
				model.destroy()
				return nil, Capabilities{}, fmt.Errorf("model %s does not support language %q", modelPath, language)
			}
			langID = id
		} else {
			log.Infof("model %s is not multilingual, synthesizing without language conditioning", modelPath)
		}

		return &XTTS{
			model:    model,
			language: language,
			langID:   langID,
			log:      log,
		}, model.caps, nil
	}
}

// SynthesizeToBuffer clones the reference voice saying the given text.
func (x *XTTS) SynthesizeToBuffer(ctx context.Context, text, refAudioPath string) (audio.Waveform, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return audio.Waveform{}, fmt.Errorf("tokenization produced no tokens")
	}

	var ref []float32
	if x.model.caps.SupportsReferenceAudio {
		wf, err := audio.DecodeWAVFile(refAudioPath)
		if err != nil {
			return audio.Waveform{}, fmt.Errorf("failed to read reference audio: %w", err)
		}
		ref = wf.Samples
	}

	start := time.Now()
	samples, err := x.model.run(ctx, tokens, ref, x.langID)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("xtts generation failed: %w", err)
	}
	x.log.Debugf("xtts/%s generated %d samples in %.2fs", x.language, len(samples), time.Since(start).Seconds())

	return audio.Waveform{Samples: samples, SampleRate: x.model.sampleRate}, nil
}
