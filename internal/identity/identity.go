// Package identity derives and persists the stable anonymous identity of a
// client session. A Resolver is constructed once per client session and
// injected into the recorders; there is no process-wide singleton.
package identity

import (
	"sync"
	"time"

	"github.com/admetrica/creativescope/internal/models"
	"github.com/google/uuid"
)

// Storage persists an identity on the client side (cookie, file). Load
// returns (nil, nil) when nothing is stored yet.
type Storage interface {
	Load() (*models.AnonymousIdentity, error)
	Save(*models.AnonymousIdentity) error
}

// Resolver resolves the anonymous identity for one client session. Resolve
// never fails: when storage is unavailable the identity lives in memory for
// the resolver's lifetime, degraded but functional. No network access.
type Resolver struct {
	mu      sync.Mutex
	storage Storage
	device  models.DeviceInfo
	cached  *models.AnonymousIdentity
	now     func() time.Time
}

// NewResolver creates a resolver backed by the given storage. A nil storage
// means in-memory only.
func NewResolver(storage Storage, device models.DeviceInfo) *Resolver {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Resolver{
		storage: storage,
		device:  device,
		now:     time.Now,
	}
}

// Resolve returns the session's identity. The first call loads or generates
// it; subsequent calls return the cached value with sessionCount bumped and
// lastActiveAt refreshed. These are local side effects only; mirroring into
// the document store is the caller's responsibility.
func (r *Resolver) Resolve() *models.AnonymousIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()

	if r.cached != nil {
		r.cached.SessionCount++
		r.cached.LastActiveAt = now
		r.persist()
		return r.snapshot()
	}

	if stored, err := r.storage.Load(); err == nil && stored != nil && stored.ID != "" {
		stored.SessionCount++
		stored.LastActiveAt = now
		stored.DeviceInfo = r.device
		r.cached = stored
		r.persist()
		return r.snapshot()
	}

	r.cached = &models.AnonymousIdentity{
		ID:           "anon_" + uuid.NewString(),
		CreatedAt:    now,
		LastActiveAt: now,
		SessionCount: 1,
		DeviceInfo:   r.device,
	}
	r.persist()
	return r.snapshot()
}

// BumpAnalysisCount increments the local analysis counter.
func (r *Resolver) BumpAnalysisCount() {
	r.bump(func(id *models.AnonymousIdentity) { id.AnalysisCount++ })
}

// BumpFeedbackCount increments the local feedback counter.
func (r *Resolver) BumpFeedbackCount() {
	r.bump(func(id *models.AnonymousIdentity) { id.FeedbackCount++ })
}

func (r *Resolver) bump(fn func(*models.AnonymousIdentity)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		return
	}
	fn(r.cached)
	r.cached.LastActiveAt = r.now().UTC()
	r.persist()
}

// persist is best-effort: storage failures leave the in-memory identity
// authoritative for the rest of the session.
func (r *Resolver) persist() {
	_ = r.storage.Save(r.cached)
}

func (r *Resolver) snapshot() *models.AnonymousIdentity {
	cp := *r.cached
	return &cp
}

// ===========================================
// IN-MEMORY STORAGE
// ===========================================

// MemoryStorage keeps the identity for the process lifetime only. It is the
// fallback when client-side persistence is unavailable.
type MemoryStorage struct {
	mu sync.Mutex
	id *models.AnonymousIdentity
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (*models.AnonymousIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id == nil {
		return nil, nil
	}
	cp := *m.id
	return &cp, nil
}

func (m *MemoryStorage) Save(id *models.AnonymousIdentity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *id
	m.id = &cp
	return nil
}
