package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/voxbridge/voxbridge/internal/logger"
)

// ErrEngineUnavailable means every candidate in a fallback chain failed to
// initialize. The failure is cached: the key stays unavailable until the
// process restarts.
var ErrEngineUnavailable = errors.New("engine unavailable")

// LoadFunc initializes one model candidate for a language. Loading is
// expensive (seconds); the registry guarantees it runs at most once per
// (kind, language) key.
type LoadFunc func(language string) (Synthesizer, Capabilities, error)

// Candidate is one entry in a fallback chain.
type Candidate struct {
	Name string
	Load LoadFunc
}

// Chain is an ordered list of model candidates. The first one that
// initializes becomes the cached handle; callers never learn a substitution
// happened beyond a log entry.
type Chain []Candidate

type slot struct {
	once   sync.Once
	handle *Handle
	err    error
}

// Registry owns every loaded engine handle. Constructed once at startup and
// passed by reference to the dispatcher; there is no ambient global state.
type Registry struct {
	mu     sync.Mutex
	chains map[Kind]Chain
	slots  map[Key]*slot
	log    *logger.Log
}

func NewRegistry(log *logger.Log) *Registry {
	return &Registry{
		chains: make(map[Kind]Chain),
		slots:  make(map[Key]*slot),
		log:    log,
	}
}

// RegisterChain installs the fallback chain for an engine kind. Chains are
// registered during startup, before any request is served.
func (r *Registry) RegisterChain(kind Kind, chain Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[kind] = chain
}

// Load returns the memoized handle for (kind, language), initializing it on
// first use. Both outcomes are cached: a second call returns the same handle
// instance, or the same failure, without touching the chain again. Loading
// one key never blocks requests against already-loaded keys.
func (r *Registry) Load(kind Kind, language string) (*Handle, error) {
	key := Key{Kind: kind, Language: language}

	r.mu.Lock()
	chain, ok := r.chains[kind]
	if !ok || len(chain) == 0 {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: no models configured for engine %q", ErrEngineUnavailable, kind)
	}
	s, ok := r.slots[key]
	if !ok {
		s = &slot{}
		r.slots[key] = s
	}
	r.mu.Unlock()

	s.once.Do(func() {
		handle, err := r.loadChain(key, chain)
		// Publish under the registry lock so LoadedKeys can read
		// concurrently with a load in progress.
		r.mu.Lock()
		s.handle, s.err = handle, err
		r.mu.Unlock()
	})
	return s.handle, s.err
}

func (r *Registry) loadChain(key Key, chain Chain) (*Handle, error) {
	var failures []string
	for i, cand := range chain {
		r.log.Infof("loading %s model %q...", key, cand.Name)
		synth, caps, err := cand.Load(key.Language)
		if err != nil {
			r.log.WithError(err).Warnf("failed to load %s model %q", key, cand.Name)
			failures = append(failures, fmt.Sprintf("%s: %v", cand.Name, err))
			continue
		}
		if i > 0 {
			r.log.Warnf("engine %s: primary model failed, substituting %q", key, cand.Name)
		} else {
			r.log.Infof("engine %s ready (model %q)", key, cand.Name)
		}
		return &Handle{Key: key, Model: cand.Name, Caps: caps, synth: synth}, nil
	}
	return nil, fmt.Errorf("%w: %s: all models failed: %s",
		ErrEngineUnavailable, key, strings.Join(failures, "; "))
}

// LoadedKeys reports the keys with a live handle, sorted. Keys that failed
// or were never requested are not included; /health uses this.
func (r *Registry) LoadedKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.slots))
	for key, s := range r.slots {
		if s.handle != nil {
			keys = append(keys, key.String())
		}
	}
	sort.Strings(keys)
	return keys
}
