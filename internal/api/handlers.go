// Package api is the HTTP surface: request validation, dispatch, and the
// mapping from synthesis errors to status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/voxbridge/voxbridge/internal/audio"
	"github.com/voxbridge/voxbridge/internal/dispatcher"
	"github.com/voxbridge/voxbridge/internal/logger"
	"github.com/voxbridge/voxbridge/internal/store"
	"github.com/voxbridge/voxbridge/internal/voices"
)

type Handler struct {
	dispatcher *dispatcher.Dispatcher
	store      *store.Store
	timeout    time.Duration
	log        *logger.Log
}

func NewHandler(d *dispatcher.Dispatcher, s *store.Store, timeout time.Duration, log *logger.Log) *Handler {
	return &Handler{
		dispatcher: d,
		store:      s,
		timeout:    timeout,
		log:        log,
	}
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/voices", h.Voices).Methods("GET")
	r.HandleFunc("/generate", h.Generate).Methods("POST")
	r.HandleFunc("/api/tts", h.LegacyTTS).Methods("POST")
	r.HandleFunc("/api/download/{filename}", h.Download).Methods("GET")
	r.HandleFunc("/api/history", h.History).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps dispatch errors onto the response policy: anything the
// client could have fixed (unknown voice) is a 400, everything on our side
// (missing sample, dead engine, failed inference) is a 500.
func statusForError(err error) int {
	if errors.Is(err, voices.ErrVoiceNotFound) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// GET /health — liveness plus the engine keys that are actually loaded, not
// the ones that are merely registered.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"voices":         h.dispatcher.Voices().Names(),
		"loaded_engines": h.dispatcher.Engines().LoadedKeys(),
	})
}

// GET /voices — the registered voice table.
func (h *Handler) Voices(w http.ResponseWriter, r *http.Request) {
	table := make(map[string]map[string]string)
	for _, entry := range h.dispatcher.Voices().Entries() {
		table[entry.Name] = map[string]string{
			"engine":   string(entry.Engine),
			"language": entry.Language,
			"gender":   entry.Gender,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"voices":       table,
		"total_voices": len(table),
	})
}

type GenerateRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// POST /generate — synthesize and stream the WAV back directly.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	req.Voice = strings.TrimSpace(req.Voice)
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	if req.Voice == "" {
		writeError(w, http.StatusBadRequest, "voice is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	wf, entry, err := h.dispatcher.Synthesize(ctx, req.Text, req.Voice)
	if err != nil {
		h.log.WithError(err).Error("generation failed")
		writeError(w, statusForError(err), err.Error())
		return
	}

	data, err := audio.EncodeWAV(wf)
	if err != nil {
		h.log.WithError(err).Error("failed to encode waveform")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", entry.Name+"_generated.wav"))
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(data); err != nil {
		h.log.WithError(err).Warn("failed to stream audio response")
	}
}

type LegacyTTSRequest struct {
	Text                   string `json:"text"`
	ReferenceAudioFilename string `json:"reference_audio_filename"`
	Language               string `json:"language"`
}

// POST /api/tts — legacy shape kept for old clients: voices are addressed by
// reference audio file name and the result is persisted behind a download
// link instead of streamed.
func (h *Handler) LegacyTTS(w http.ResponseWriter, r *http.Request) {
	var req LegacyTTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Text = strings.TrimSpace(req.Text)
	if req.ReferenceAudioFilename == "" {
		writeError(w, http.StatusBadRequest, "reference_audio_filename is required")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	entry, err := h.dispatcher.Voices().LookupByRefAudio(req.ReferenceAudioFilename)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	// The registry mapping wins over whatever language the old client sent.
	if req.Language != "" && req.Language != entry.Language {
		h.log.Warnf("legacy request asked for language %q but voice %q is registered as %q",
			req.Language, entry.Name, entry.Language)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	wf, _, err := h.dispatcher.Synthesize(ctx, req.Text, entry.Name)
	if err != nil {
		h.log.WithError(err).Error("legacy generation failed")
		writeError(w, statusForError(err), err.Error())
		return
	}

	data, err := audio.EncodeWAV(wf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	gen, err := h.store.SaveWAV(data, store.Generation{
		Filename:   store.OutputFilename(req.Text, req.ReferenceAudioFilename),
		Voice:      entry.Name,
		Engine:     string(entry.Engine),
		Language:   entry.Language,
		SampleRate: wf.SampleRate,
	})
	if err != nil {
		h.log.WithError(err).Error("failed to persist generated audio")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"download_link": "/api/download/" + gen.Filename,
	})
}

// GET /api/history — the most recent generations, newest first. An optional
// limit query parameter caps the page size.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	gens, err := h.store.Recent(limit)
	if err != nil {
		h.log.WithError(err).Error("failed to query generation history")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if gens == nil {
		gens = []store.Generation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generations": gens,
		"total":       len(gens),
	})
}

// GET /api/download/{filename} — serve a previously generated file.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	path, err := h.store.Resolve(filename)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)
}
