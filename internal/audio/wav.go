// Package audio holds the waveform type shared by the synthesis engines and
// a minimal WAV codec for reference samples and generated output.
package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"
)

// Waveform is a mono buffer of float32 samples in [-1, 1] plus its rate.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration reports the playback length of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(w.Samples)) / float64(w.SampleRate) * float64(time.Second))
}

// Downmix collapses multi-channel audio into a single channel by averaging.
// A single channel passes through unchanged.
func Downmix(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return channels[0]
	}
	n := len(channels[0])
	for _, ch := range channels[1:] {
		if len(ch) < n {
			n = len(ch)
		}
	}
	mono := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for _, ch := range channels {
			sum += ch[i]
		}
		mono[i] = sum / float32(len(channels))
	}
	return mono
}

// EncodeWAV renders the waveform as a 16-bit PCM mono WAV byte stream.
func EncodeWAV(w Waveform) ([]byte, error) {
	if len(w.Samples) == 0 {
		return nil, fmt.Errorf("empty waveform")
	}
	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", w.SampleRate)
	}

	pcm := make([]byte, len(w.Samples)*2)
	for i, sample := range w.Samples {
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		val := int16(sample * 32767)
		pcm[i*2] = byte(val)
		pcm[i*2+1] = byte(val >> 8)
	}

	var buf bytes.Buffer
	if err := writeWAVHeader(&buf, len(pcm), w.SampleRate); err != nil {
		return nil, err
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// writeWAVHeader writes a 44-byte RIFF header for 16-bit mono PCM.
func writeWAVHeader(w io.Writer, dataSize, sampleRate int) error {
	totalSize := 36 + dataSize

	if _, err := w.Write([]byte("RIFF")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(totalSize)); err != nil {
		return err
	}
	if _, err := w.Write([]byte("WAVE")); err != nil {
		return err
	}

	if _, err := w.Write([]byte("fmt ")); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(16)); err != nil { // sub-chunk size
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(1)); err != nil { // PCM format
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(1)); err != nil { // mono
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sampleRate)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(sampleRate*2)); err != nil { // byte rate
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(2)); err != nil { // block align
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(16)); err != nil { // bits per sample
		return err
	}

	if _, err := w.Write([]byte("data")); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint32(dataSize))
}

// DecodeWAV parses a 16-bit PCM WAV stream. Stereo content is downmixed.
func DecodeWAV(data []byte) (Waveform, error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Waveform{}, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
	)

	// Walk the chunk list; files in the wild carry LIST/INFO chunks between
	// fmt and data.
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Waveform{}, fmt.Errorf("fmt chunk too short (%d bytes)", size)
			}
			format := int(binary.LittleEndian.Uint16(data[body : body+2]))
			if format != 1 {
				return Waveform{}, fmt.Errorf("unsupported WAV format %d (want PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}

		// Chunks are word-aligned
		if size%2 == 1 {
			size++
		}
		offset = body + size
	}

	if sampleRate == 0 || pcm == nil {
		return Waveform{}, fmt.Errorf("missing fmt or data chunk")
	}
	if bits != 16 {
		return Waveform{}, fmt.Errorf("unsupported bit depth %d (want 16)", bits)
	}
	if channels < 1 || channels > 2 {
		return Waveform{}, fmt.Errorf("unsupported channel count %d", channels)
	}

	frames := len(pcm) / (2 * channels)
	chans := make([][]float32, channels)
	for c := range chans {
		chans[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			val := int16(uint16(pcm[off]) | uint16(pcm[off+1])<<8)
			chans[c][i] = float32(val) / 32768.0
		}
	}

	return Waveform{Samples: Downmix(chans), SampleRate: sampleRate}, nil
}

// DecodeWAVFile reads and decodes a WAV file from disk.
func DecodeWAVFile(path string) (Waveform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Waveform{}, err
	}
	wf, err := DecodeWAV(data)
	if err != nil {
		return Waveform{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return wf, nil
}
