// cmd/server/main.go
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/voxbridge/voxbridge/config"
	"github.com/voxbridge/voxbridge/internal/api"
	"github.com/voxbridge/voxbridge/internal/dispatcher"
	"github.com/voxbridge/voxbridge/internal/engine"
	"github.com/voxbridge/voxbridge/internal/logger"
	"github.com/voxbridge/voxbridge/internal/store"
	"github.com/voxbridge/voxbridge/internal/voices"
)

func buildChain(models []config.ModelConfig, modelsDir string, newLoader func(path string, rate int, log *logger.Log) engine.LoadFunc, log *logger.Log) engine.Chain {
	chain := make(engine.Chain, 0, len(models))
	for _, m := range models {
		chain = append(chain, engine.Candidate{
			Name: m.File,
			Load: newLoader(filepath.Join(modelsDir, m.File), m.SampleRate, log),
		})
	}
	return chain
}

func voiceEntries(cfg []config.VoiceConfig) []voices.Entry {
	entries := make([]voices.Entry, 0, len(cfg))
	for _, v := range cfg {
		entries = append(entries, voices.Entry{
			Name:     v.Name,
			Engine:   engine.Kind(v.Engine),
			Language: v.Language,
			RefAudio: v.RefAudio,
			Gender:   v.Gender,
		})
	}
	return entries
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.GlobalLogLevel = logger.ParseLevel(cfg.Logging.Level)
	log := logger.New()

	st, err := store.New(cfg.Database.Path, cfg.Paths.OutputDir)
	if err != nil {
		log.WithError(err).Error("failed to initialize output store")
		os.Exit(1)
	}
	defer st.Close()

	vreg, err := voices.New(voiceEntries(cfg.Voices), cfg.Paths.ReferenceAudioDir)
	if err != nil {
		log.WithError(err).Error("invalid voice configuration")
		os.Exit(1)
	}

	ereg := engine.NewRegistry(log)
	ereg.RegisterChain(engine.KindXTTS,
		buildChain(cfg.Engines.XTTS.Models, cfg.Paths.ModelsDir, engine.NewXTTSLoader, log))
	ereg.RegisterChain(engine.KindChatterbox,
		buildChain(cfg.Engines.Chatterbox.Models, cfg.Paths.ModelsDir, engine.NewChatterboxLoader, log))
	if cfg.Engines.Google.Enabled {
		ereg.RegisterChain(engine.KindGoogle, engine.Chain{{
			Name: "google-cloud-tts",
			Load: engine.NewGoogleLoader(cfg.Engines.Google.CredentialsFile, cfg.Engines.Google.SampleRate, log),
		}})
	}

	// Engines load lazily on first request; preloading is opt-in per key.
	for _, key := range cfg.Engines.Preload {
		parts := strings.SplitN(key, "/", 2)
		if len(parts) != 2 {
			log.Warnf("skipping malformed preload key %q (want kind/language)", key)
			continue
		}
		if _, err := ereg.Load(engine.Kind(parts[0]), parts[1]); err != nil {
			log.WithError(err).Warnf("preload of %s failed", key)
		}
	}

	d := dispatcher.New(vreg, ereg, log)
	timeout := time.Duration(cfg.Server.RequestTimeout) * time.Second
	handler := api.NewHandler(d, st, timeout, log)

	r := mux.NewRouter()
	handler.RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	log.Infof("🎙️ VoxBridge TTS server starting on port %s", port)
	log.Infof("🗄️ Generation history: %s", cfg.Database.Path)
	log.Infof("🔊 Voices: %s", strings.Join(vreg.Names(), ", "))

	if err := http.ListenAndServe(":"+port, c.Handler(r)); err != nil {
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}
