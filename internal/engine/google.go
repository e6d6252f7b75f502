package engine

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	ttspb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/voxbridge/voxbridge/internal/audio"
	"github.com/voxbridge/voxbridge/internal/logger"
)

// googleLocales maps the registry's ISO-639-1 codes to the locale the cloud
// API expects.
var googleLocales = map[string]string{
	"en": "en-US",
	"es": "es-ES",
	"pt": "pt-BR",
}

// GoogleTTS is the optional remote engine. It does not clone voices: the
// reference sample is ignored and the cloud picks a stock voice for the
// language. Registered only when credentials are configured.
type GoogleTTS struct {
	client     *texttospeech.Client
	locale     string
	sampleRate int
	log        *logger.Log
}

// NewGoogleLoader returns the LoadFunc for the remote engine. There is no
// fallback chain behind it; the chain has a single candidate.
func NewGoogleLoader(credentialsFile string, sampleRate int, log *logger.Log) LoadFunc {
	return func(language string) (Synthesizer, Capabilities, error) {
		locale, ok := googleLocales[language]
		if !ok {
			return nil, Capabilities{}, fmt.Errorf("no google locale for language %q", language)
		}

		var opts []option.ClientOption
		if credentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(credentialsFile))
		}
		client, err := texttospeech.NewClient(context.Background(), opts...)
		if err != nil {
			return nil, Capabilities{}, fmt.Errorf("failed to create google tts client: %w", err)
		}

		caps := Capabilities{SupportsLanguage: true, SupportsReferenceAudio: false}
		return &GoogleTTS{
			client:     client,
			locale:     locale,
			sampleRate: sampleRate,
			log:        log,
		}, caps, nil
	}
}

// SynthesizeToBuffer asks the cloud for LINEAR16 audio and decodes the WAV
// container it arrives in.
func (g *GoogleTTS) SynthesizeToBuffer(ctx context.Context, text, refAudioPath string) (audio.Waveform, error) {
	req := &ttspb.SynthesizeSpeechRequest{
		Input: &ttspb.SynthesisInput{
			InputSource: &ttspb.SynthesisInput_Text{Text: text},
		},
		Voice: &ttspb.VoiceSelectionParams{
			LanguageCode: g.locale,
		},
		AudioConfig: &ttspb.AudioConfig{
			AudioEncoding:   ttspb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(g.sampleRate),
		},
	}

	resp, err := g.client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("google synthesis failed: %w", err)
	}
	if len(resp.AudioContent) == 0 {
		return audio.Waveform{}, fmt.Errorf("empty audio content from google tts")
	}

	wf, err := audio.DecodeWAV(resp.AudioContent)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("failed to decode google tts response: %w", err)
	}
	g.log.Debugf("google/%s generated %d samples", g.locale, len(wf.Samples))
	return wf, nil
}

// Close releases the cloud client.
func (g *GoogleTTS) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
