package engine

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/voxbridge/voxbridge/internal/audio"
	"github.com/voxbridge/voxbridge/internal/logger"
)

// Exported model input/output names shared by both ONNX families.
const (
	onnxInputTokens   = "tokens"
	onnxInputRefAudio = "ref_audio"
	onnxInputLangID   = "lang_id"
	onnxOutputAudio   = "audio"
)

var ortInitOnce sync.Once
var ortInitErr error

// initONNXRuntime initializes the shared ONNX runtime environment once.
// VOXBRIDGE_ONNXRUNTIME_LIB points at the shared library when it is not on
// the default search path.
func initONNXRuntime() error {
	ortInitOnce.Do(func() {
		if libPath := os.Getenv("VOXBRIDGE_ONNXRUNTIME_LIB"); libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			if err.Error() != "the ONNX runtime is already initialized" {
				ortInitErr = fmt.Errorf("failed to initialize ONNX runtime: %w", err)
			}
		}
	})
	return ortInitErr
}

// onnxModel wraps one loaded ONNX session. The input set is inspected once
// at load time; capabilities are never probed per call.
type onnxModel struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	caps       Capabilities
	sampleRate int
	log        *logger.Log
}

// loadONNXModel opens the model at path and resolves its capability
// descriptor from the declared input names. Every model must declare the
// token input and the audio output.
func loadONNXModel(path string, sampleRate int, log *logger.Log) (*onnxModel, error) {
	if err := initONNXRuntime(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not found: %s", path)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect model %s: %w", path, err)
	}

	var caps Capabilities
	inputNames := make([]string, 0, len(inputs))
	hasTokens := false
	for _, info := range inputs {
		switch info.Name {
		case onnxInputTokens:
			hasTokens = true
		case onnxInputRefAudio:
			caps.SupportsReferenceAudio = true
		case onnxInputLangID:
			caps.SupportsLanguage = true
		default:
			return nil, fmt.Errorf("model %s declares unsupported input %q", path, info.Name)
		}
		inputNames = append(inputNames, info.Name)
	}
	if !hasTokens {
		return nil, fmt.Errorf("model %s declares no %q input", path, onnxInputTokens)
	}

	hasAudio := false
	for _, info := range outputs {
		if info.Name == onnxOutputAudio {
			hasAudio = true
		}
	}
	if !hasAudio {
		return nil, fmt.Errorf("model %s declares no %q output", path, onnxOutputAudio)
	}

	session, err := ort.NewDynamicAdvancedSession(path, inputNames, []string{onnxOutputAudio}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for %s: %w", path, err)
	}

	return &onnxModel{
		session:    session,
		inputNames: inputNames,
		caps:       caps,
		sampleRate: sampleRate,
		log:        log,
	}, nil
}

// run executes one inference. Inputs are fed in the order the model declares
// them; the output tensor is allocated by the runtime and collapsed to a
// mono sample buffer.
func (m *onnxModel) run(ctx context.Context, tokens []int64, refAudio []float32, langID int64) ([]float32, error) {
	// A started inference cannot be cancelled; honor the context only up
	// front.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputs := make([]ort.Value, 0, len(m.inputNames))
	cleanup := func() {
		for _, v := range inputs {
			if v != nil {
				v.Destroy()
			}
		}
	}
	defer cleanup()

	for _, name := range m.inputNames {
		switch name {
		case onnxInputTokens:
			t, err := ort.NewTensor(ort.NewShape(1, int64(len(tokens))), tokens)
			if err != nil {
				return nil, fmt.Errorf("failed to create token tensor: %w", err)
			}
			inputs = append(inputs, t)
		case onnxInputRefAudio:
			t, err := ort.NewTensor(ort.NewShape(1, int64(len(refAudio))), refAudio)
			if err != nil {
				return nil, fmt.Errorf("failed to create reference tensor: %w", err)
			}
			inputs = append(inputs, t)
		case onnxInputLangID:
			t, err := ort.NewTensor(ort.NewShape(1), []int64{langID})
			if err != nil {
				return nil, fmt.Errorf("failed to create language tensor: %w", err)
			}
			inputs = append(inputs, t)
		}
	}

	// A nil output entry makes the runtime allocate the tensor, so the
	// result carries its true length instead of a preallocated guess.
	outputs := []ort.Value{nil}
	if err := m.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("model returned unexpected output type %T", outputs[0])
	}
	return collapseAudio(tensor.GetData(), tensor.GetShape())
}

// collapseAudio normalizes the model output to one channel. Models export
// audio as [N], [1,N], planar [C,N] or interleaved [N,C]; anything else is
// rejected. The interleaved layout is row-major, so its channels are
// gathered with a stride before downmixing.
func collapseAudio(data []float32, shape ort.Shape) ([]float32, error) {
	// Strip leading singleton dimensions
	dims := make([]int64, 0, len(shape))
	for _, d := range shape {
		if d != 1 || len(dims) > 0 {
			dims = append(dims, d)
		}
	}

	switch len(dims) {
	case 0:
		return nil, fmt.Errorf("model produced no audio")
	case 1:
		out := make([]float32, len(data))
		copy(out, data)
		return out, nil
	case 2:
		channels := int(dims[0])
		frames := int(dims[1])
		interleaved := channels > frames
		if interleaved {
			channels, frames = frames, channels
		}
		if channels*frames > len(data) {
			return nil, fmt.Errorf("audio shape %v exceeds tensor data", shape)
		}
		chans := make([][]float32, channels)
		if interleaved {
			for c := 0; c < channels; c++ {
				ch := make([]float32, frames)
				for i := 0; i < frames; i++ {
					ch[i] = data[i*channels+c]
				}
				chans[c] = ch
			}
		} else {
			for c := 0; c < channels; c++ {
				chans[c] = data[c*frames : (c+1)*frames]
			}
		}
		out := make([]float32, frames)
		copy(out, audio.Downmix(chans))
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported audio shape %v", shape)
	}
}

// tokenize maps text to the token ids the exported models consume. The
// exported graphs embed their own lookup over unicode codepoints.
func tokenize(text string) []int64 {
	runes := []rune(text)
	ids := make([]int64, len(runes))
	for i, r := range runes {
		ids[i] = int64(r)
	}
	return ids
}

func (m *onnxModel) destroy() {
	if m.session != nil {
		m.session.Destroy()
	}
}
