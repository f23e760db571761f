package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Encoder is one loaded tokenizer instance.
type Encoder interface {
	Encode(text string) ([]int, error)
}

// Counter maps text to a token count for one fixed model.
type Counter interface {
	Count(text string) (int, error)
}

// Loader loads the backing encoder for a model. Loading is expensive; the
// Service caches the result for the process lifetime.
type Loader func(model ModelID) (Encoder, error)

// LoadError reports that an encoder could not be loaded, including requests
// for identifiers outside the catalog.
type LoadError struct {
	Model ModelID
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading tokenizer for model %q: %v", e.Model, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// RuntimeError reports that a loaded encoder failed to encode a text.
type RuntimeError struct {
	Model ModelID
	Err   error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("tokenizer for model %q failed to encode: %v", e.Model, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// Service maps (text, model identifier) to a token count. Loaded encoders
// are cached by identifier for the process lifetime; the model set is small
// and bounded by the catalog, so there is no eviction. The cache is owned
// by the Service instance, not package state, so tests get isolation from a
// fresh Service.
type Service struct {
	mu    sync.RWMutex
	load  Loader
	cache map[ModelID]Encoder
}

// NewService creates a Service around the given loader. A nil loader uses
// the tiktoken-backed default.
func NewService(load Loader) *Service {
	if load == nil {
		load = TiktokenLoader
	}
	return &Service{
		load:  load,
		cache: make(map[ModelID]Encoder),
	}
}

// Count returns the token count of text under the given model. The first
// use of an identifier loads and caches the encoder; the double-checked
// lock guarantees a single loader per key even under concurrent first use.
func (s *Service) Count(text string, model ModelID) (int, error) {
	enc, err := s.encoderFor(model)
	if err != nil {
		return 0, err
	}
	tokens, err := enc.Encode(text)
	if err != nil {
		return 0, &RuntimeError{Model: model, Err: err}
	}
	return len(tokens), nil
}

// CounterFor returns a Counter bound to one model, for callers that count
// many texts against the same identifier.
func (s *Service) CounterFor(model ModelID) Counter {
	return boundCounter{svc: s, model: model}
}

type boundCounter struct {
	svc   *Service
	model ModelID
}

func (c boundCounter) Count(text string) (int, error) {
	return c.svc.Count(text, c.model)
}

func (s *Service) encoderFor(model ModelID) (Encoder, error) {
	if !Supported(model) {
		return nil, &LoadError{
			Model: model,
			Err:   fmt.Errorf("unsupported model; supported models: %s", CatalogString()),
		}
	}

	s.mu.RLock()
	enc, ok := s.cache[model]
	s.mu.RUnlock()
	if ok {
		return enc, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if enc, ok := s.cache[model]; ok {
		return enc, nil
	}
	enc, err := s.load(model)
	if err != nil {
		return nil, &LoadError{Model: model, Err: err}
	}
	s.cache[model] = enc
	return enc, nil
}

// TiktokenLoader loads a BPE encoder via tiktoken for catalog identifiers.
func TiktokenLoader(model ModelID) (Encoder, error) {
	enc, err := tiktoken.EncodingForModel(string(model))
	if err != nil {
		return nil, err
	}
	return tiktokenEncoder{enc: enc}, nil
}

type tiktokenEncoder struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenEncoder) Encode(text string) ([]int, error) {
	return t.enc.Encode(text, nil, nil), nil
}
