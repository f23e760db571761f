package tokenizer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// fakeEncoder tokenizes on whitespace.
type fakeEncoder struct{}

func (fakeEncoder) Encode(text string) ([]int, error) {
	words := strings.Fields(text)
	tokens := make([]int, len(words))
	return tokens, nil
}

// failingEncoder fails at encode time.
type failingEncoder struct{}

func (failingEncoder) Encode(string) ([]int, error) {
	return nil, fmt.Errorf("encode blew up")
}

func countingLoader(loads *int, enc Encoder, loadErr error) Loader {
	return func(model ModelID) (Encoder, error) {
		*loads++
		if loadErr != nil {
			return nil, loadErr
		}
		return enc, nil
	}
}

func TestCountWithCachedEncoder(t *testing.T) {
	loads := 0
	svc := NewService(countingLoader(&loads, fakeEncoder{}, nil))

	n, err := svc.Count("hello world", ModelGPT4o)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.Count("more text here", ModelGPT4o); err != nil {
			t.Fatalf("Count: %v", err)
		}
	}
	if loads != 1 {
		t.Errorf("encoder loaded %d times, want 1", loads)
	}
}

func TestCountUnknownModelRejectedBeforeLoad(t *testing.T) {
	loads := 0
	svc := NewService(countingLoader(&loads, fakeEncoder{}, nil))

	_, err := svc.Count("text", ModelID("no-such-model"))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if loads != 0 {
		t.Errorf("loader must not run for unknown identifiers, ran %d times", loads)
	}
	// The full catalog is surfaced to aid correction.
	if !strings.Contains(err.Error(), string(ModelGPT4o)) {
		t.Errorf("error should list the catalog: %v", err)
	}
}

func TestCountLoadFailure(t *testing.T) {
	loads := 0
	svc := NewService(countingLoader(&loads, nil, fmt.Errorf("model file corrupt")))

	_, err := svc.Count("text", ModelGPT4)
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if loadErr.Model != ModelGPT4 {
		t.Errorf("LoadError.Model = %s, want %s", loadErr.Model, ModelGPT4)
	}
}

func TestCountEncodeFailure(t *testing.T) {
	loads := 0
	svc := NewService(countingLoader(&loads, failingEncoder{}, nil))

	_, err := svc.Count("text", ModelGPT4o)
	var runtimeErr *RuntimeError
	if !errors.As(err, &runtimeErr) {
		t.Fatalf("expected RuntimeError, got %v", err)
	}
	if runtimeErr.Model != ModelGPT4o {
		t.Errorf("RuntimeError.Model = %s, want %s", runtimeErr.Model, ModelGPT4o)
	}
}

func TestConcurrentFirstUseLoadsOnce(t *testing.T) {
	var mu sync.Mutex
	loads := 0
	svc := NewService(func(model ModelID) (Encoder, error) {
		mu.Lock()
		loads++
		mu.Unlock()
		return fakeEncoder{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Count("a b c", ModelGPT4o); err != nil {
				t.Errorf("Count: %v", err)
			}
		}()
	}
	wg.Wait()

	if loads != 1 {
		t.Errorf("encoder loaded %d times under concurrency, want 1", loads)
	}
}

func TestCounterFor(t *testing.T) {
	loads := 0
	svc := NewService(countingLoader(&loads, fakeEncoder{}, nil))
	counter := svc.CounterFor(ModelGPT4o)

	n, err := counter.Count("one two three")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestCatalog(t *testing.T) {
	entries := Catalog()
	if len(entries) == 0 {
		t.Fatal("catalog must not be empty")
	}
	for _, entry := range entries {
		if !Supported(entry.ID) {
			t.Errorf("catalog entry %s not reported as supported", entry.ID)
		}
		if entry.Description == "" {
			t.Errorf("catalog entry %s has no description", entry.ID)
		}
	}
	if Supported(ModelID("bogus")) {
		t.Error("bogus identifier reported as supported")
	}
	if !Supported(DefaultModel) {
		t.Error("default model must be in the catalog")
	}
}
