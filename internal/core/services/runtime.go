package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"scan-prediction-service/internal/core/domain"
	ports "scan-prediction-service/internal/core/ports/output"
)

// loadedModel is a scorer handle shared by concurrent requests. refs counts
// the slot's reference plus one per in-flight caller; the handle is closed
// when the last reference is released.
type loadedModel struct {
	model    *domain.RegisteredModel
	scorer   ports.Scorer
	loadedAt time.Time
	refs     atomic.Int64
}

func newLoadedModel(model *domain.RegisteredModel, scorer ports.Scorer, at time.Time) *loadedModel {
	lm := &loadedModel{model: model, scorer: scorer, loadedAt: at}
	lm.refs.Store(1)
	return lm
}

// acquire takes a reference unless the handle has already been released for good.
func (lm *loadedModel) acquire() bool {
	for {
		n := lm.refs.Load()
		if n <= 0 {
			return false
		}
		if lm.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (lm *loadedModel) release() {
	if lm.refs.Add(-1) != 0 {
		return
	}
	if c, ok := lm.scorer.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.WithError(err).WithField("model_id", lm.model.ID).Warn("Failed to close model handle")
		}
	}
}

type runtimeSlot struct {
	mu      sync.Mutex
	current atomic.Pointer[loadedModel]
}

// ModelStatus is the load state of one architecture.
type ModelStatus struct {
	Architecture domain.Architecture     `json:"architecture"`
	Loaded       bool                    `json:"loaded"`
	Model        *domain.RegisteredModel `json:"model,omitempty"`
	LoadedAt     *time.Time              `json:"loaded_at,omitempty"`
}

// ModelRuntime owns the shared scoring handles, one per architecture.
// Handles are loaded lazily and swapped atomically on reload; a replaced
// handle stays open until the requests scoring on it release it.
type ModelRuntime struct {
	models  ports.RegisteredModelRepository
	audit   ports.AuditRepository
	loaders map[domain.Architecture]ports.ModelLoader
	metrics ports.PipelineMetrics
	slots   map[domain.Architecture]*runtimeSlot
	now     func() time.Time
}

func NewModelRuntime(
	models ports.RegisteredModelRepository,
	audit ports.AuditRepository,
	loaders map[domain.Architecture]ports.ModelLoader,
	metrics ports.PipelineMetrics,
) *ModelRuntime {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	slots := map[domain.Architecture]*runtimeSlot{
		domain.ArchBinaryClassifier:  {},
		domain.ArchVisionTransformer: {},
	}
	return &ModelRuntime{
		models:  models,
		audit:   audit,
		loaders: loaders,
		metrics: metrics,
		slots:   slots,
		now:     time.Now,
	}
}

// Scorer returns the handle for model together with a release func the
// caller must invoke once scoring is done. The shared handle is loaded on
// first use and swapped forward when a newer model of the architecture
// becomes active. A request that resolved a model older than the loaded one
// scores on a private handle and leaves the shared one in place.
func (r *ModelRuntime) Scorer(ctx context.Context, model *domain.RegisteredModel) (ports.Scorer, func(), error) {
	slot, ok := r.slots[model.Architecture]
	if !ok {
		return nil, nil, fmt.Errorf("%w: unsupported architecture %q", domain.ErrModelLoad, model.Architecture)
	}

	if lm := slot.current.Load(); lm != nil && lm.model.ID == model.ID && lm.acquire() {
		return lm.scorer, lm.release, nil
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	prev := slot.current.Load()
	if prev != nil && prev.model.ID == model.ID && prev.acquire() {
		return prev.scorer, prev.release, nil
	}

	lm, err := r.load(ctx, model)
	if err != nil {
		return nil, nil, err
	}

	if prev != nil && !model.NewerThan(prev.model) {
		log.WithFields(log.Fields{
			"model_id":  model.ID,
			"loaded_id": prev.model.ID,
		}).Debug("Stale model requested; scoring on a private handle")
		return lm.scorer, lm.release, nil
	}

	lm.acquire()
	r.swap(ctx, slot, prev, lm)
	return lm.scorer, lm.release, nil
}

// Reload loads the currently active model of arch and swaps it in.
func (r *ModelRuntime) Reload(ctx context.Context, arch domain.Architecture) (*domain.RegisteredModel, error) {
	slot, ok := r.slots[arch]
	if !ok {
		return nil, domain.ErrInvalidArch
	}

	model, err := r.models.GetActive(ctx, arch)
	if err != nil {
		return nil, fmt.Errorf("get active model: %w", err)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	lm, err := r.load(ctx, model)
	if err != nil {
		return nil, err
	}
	r.swap(ctx, slot, slot.current.Load(), lm)
	return model, nil
}

// Warm loads the active model of every architecture. Failures are logged;
// the next request retries the load.
func (r *ModelRuntime) Warm(ctx context.Context) {
	for arch := range r.slots {
		model, err := r.models.GetActive(ctx, arch)
		if err != nil {
			log.WithError(err).WithField("architecture", arch).Warn("No active model to preload")
			continue
		}
		_, release, err := r.Scorer(ctx, model)
		if err != nil {
			log.WithError(err).WithField("architecture", arch).Warn("Model preload failed")
			continue
		}
		release()
	}
}

// Status reports the load state of every architecture.
func (r *ModelRuntime) Status() []ModelStatus {
	out := make([]ModelStatus, 0, len(r.slots))
	for _, arch := range []domain.Architecture{domain.ArchBinaryClassifier, domain.ArchVisionTransformer} {
		st := ModelStatus{Architecture: arch}
		if lm := r.slots[arch].current.Load(); lm != nil {
			loadedAt := lm.loadedAt
			st.Loaded = true
			st.Model = lm.model
			st.LoadedAt = &loadedAt
		}
		out = append(out, st)
	}
	return out
}

func (r *ModelRuntime) load(ctx context.Context, model *domain.RegisteredModel) (*loadedModel, error) {
	loader, ok := r.loaders[model.Architecture]
	if !ok {
		return nil, fmt.Errorf("%w: no loader for %s", domain.ErrModelLoad, model.Architecture)
	}

	scorer, err := loader.Load(ctx, model)
	if err != nil {
		r.metrics.SetModelLoaded(model.Architecture, false)
		return nil, fmt.Errorf("load model %s %s: %w: %v", model.Name, model.Version, domain.ErrModelLoad, err)
	}

	return newLoadedModel(model, scorer, r.now()), nil
}

func (r *ModelRuntime) swap(ctx context.Context, slot *runtimeSlot, prev, next *loadedModel) {
	slot.current.Store(next)
	r.metrics.SetModelLoaded(next.model.Architecture, true)

	kind := domain.AuditModelLoaded
	msg := fmt.Sprintf("Model %s %s loaded", next.model.Name, next.model.Version)
	if prev != nil {
		kind = domain.AuditModelReloaded
		msg = fmt.Sprintf("Model %s %s replaced %s %s", next.model.Name, next.model.Version, prev.model.Name, prev.model.Version)
		prev.release()
	}

	log.WithFields(log.Fields{
		"model_id":     next.model.ID,
		"model":        next.model.Name,
		"version":      next.model.Version,
		"architecture": next.model.Architecture,
	}).Info(msg)

	if r.audit == nil {
		return
	}
	if err := r.audit.Append(ctx, domain.NewModelEvent(kind, next.model.ID, msg)); err != nil {
		log.WithError(err).WithField("event_kind", kind).Warn("Failed to append model audit event")
	}
}
