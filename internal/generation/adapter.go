package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/textpulse/internal/domain"
	"github.com/pscheid92/textpulse/internal/platform/retry"
)

// Observer receives lifecycle and per-call events. The metrics adapter
// implements it; nil is allowed.
type Observer interface {
	ModelStateChanged(state domain.ModelState)
	GenerationFinished(outcome domain.Outcome, elapsed time.Duration)
}

type modelHandle struct {
	model domain.Model
}

// Adapter is the single owner of the generation model. State and model are
// written only by Load.
type Adapter struct {
	loader   domain.ModelLoader
	eos      string
	device   string
	sampling domain.Sampling
	policy   retry.Policy
	classify retry.Classify
	clock    clockwork.Clock
	observer Observer

	state atomic.Int32
	model atomic.Pointer[modelHandle]
}

type Option func(*Adapter)

// WithLoadRetry lets Load probe the backend up to policy.MaxAttempts times.
func WithLoadRetry(policy retry.Policy, classify retry.Classify) Option {
	return func(a *Adapter) {
		a.policy = policy
		a.classify = classify
	}
}

func WithSampling(s domain.Sampling) Option {
	return func(a *Adapter) { a.sampling = s }
}

func WithClock(clock clockwork.Clock) Option {
	return func(a *Adapter) { a.clock = clock }
}

func WithObserver(o Observer) Option {
	return func(a *Adapter) { a.observer = o }
}

func NewAdapter(loader domain.ModelLoader, eos, device string, opts ...Option) *Adapter {
	a := &Adapter{
		loader:   loader,
		eos:      eos,
		device:   device,
		sampling: domain.DefaultSampling(),
		policy:   retry.Policy{MaxAttempts: 1},
		classify: func(error) retry.Action { return retry.Retry },
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Load moves the adapter from unloaded to loading and then to loaded or
// load_failed. Only the first call does anything; later calls return
// domain.ErrLoadAttempted. A failed load is never retried afterwards.
func (a *Adapter) Load(ctx context.Context) error {
	if !a.state.CompareAndSwap(int32(domain.ModelUnloaded), int32(domain.ModelLoading)) {
		return domain.ErrLoadAttempted
	}
	a.notifyState(domain.ModelLoading)

	start := a.clock.Now()
	slog.Info("Loading generation model", "device", a.device, "max_attempts", a.policy.MaxAttempts)

	model, err := retry.Do(ctx, a.policy, a.classify, func(ctx context.Context) (domain.Model, error) {
		return a.loader.Load(ctx)
	})
	if err == nil && model == nil {
		err = errors.New("loader returned no model")
	}
	if err != nil {
		a.state.Store(int32(domain.ModelLoadFailed))
		a.notifyState(domain.ModelLoadFailed)
		slog.Error("Generation model failed to load, using fallback", "error", err, "elapsed", a.clock.Since(start))
		return fmt.Errorf("load generation model: %w", err)
	}

	a.model.Store(&modelHandle{model: model})
	a.state.Store(int32(domain.ModelLoaded))
	a.notifyState(domain.ModelLoaded)
	slog.Info("Generation model loaded", "device", a.device, "elapsed", a.clock.Since(start))
	return nil
}

// Generate appends the end-of-sequence marker to text and decodes a
// continuation. It never returns an error and never panics.
func (a *Adapter) Generate(ctx context.Context, text string) (result domain.Generation) {
	start := a.clock.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Panic during generation", "panic", r)
			result = domain.Generation{Outcome: domain.OutcomeFailed, Err: fmt.Errorf("%v", r)}
		}
		if a.observer != nil {
			a.observer.GenerationFinished(result.Outcome, a.clock.Since(start))
		}
	}()

	handle := a.model.Load()
	if domain.ModelState(a.state.Load()) != domain.ModelLoaded || handle == nil {
		return domain.Generation{Outcome: domain.OutcomeUnavailable, Err: domain.ErrModelNotLoaded}
	}

	continuation, err := handle.model.Generate(ctx, text+a.eos, a.sampling)
	if err != nil {
		slog.WarnContext(ctx, "Generation failed", "error", err)
		return domain.Generation{Outcome: domain.OutcomeFailed, Err: err}
	}
	if continuation == "" {
		return domain.Generation{Outcome: domain.OutcomeSuccess, Text: domain.MessageEmptyGeneration}
	}
	return domain.Generation{Outcome: domain.OutcomeSuccess, Text: continuation}
}

func (a *Adapter) Status() domain.ModelStatus {
	return domain.ModelStatus{
		State:  domain.ModelState(a.state.Load()),
		Device: a.device,
	}
}

func (a *Adapter) notifyState(state domain.ModelState) {
	if a.observer != nil {
		a.observer.ModelStateChanged(state)
	}
}
