package store

import (
	"context"
	"sort"
	"sync"

	"github.com/petpath/tracksync/internal/models"
)

// Memory-backed repositories used by unit tests and by the CLI runner when
// no MongoDB is configured.

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]models.UserRecord
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]models.UserRecord)}
}

func (r *MemoryUserRepository) FindByNIF(ctx context.Context, nif string) (*models.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[nif]; ok {
		cp := u
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryUserRepository) Upsert(ctx context.Context, u *models.UserRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.NIF] = *u
	return nil
}

func (r *MemoryUserRepository) ListActive(ctx context.Context) ([]models.UserRecord, error) {
	return r.list(func(u models.UserRecord) bool { return u.Status == models.StatusActive })
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]models.UserRecord, error) {
	return r.list(func(models.UserRecord) bool { return true })
}

func (r *MemoryUserRepository) list(keep func(models.UserRecord) bool) ([]models.UserRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.UserRecord{}
	for _, u := range r.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NIF < out[j].NIF })
	return out, nil
}

type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]models.DeviceRecord
}

func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{devices: make(map[string]models.DeviceRecord)}
}

func (r *MemoryDeviceRepository) UpsertBatch(ctx context.Context, recs []models.DeviceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range recs {
		r.devices[rec.Key] = rec
	}
	return nil
}

func (r *MemoryDeviceRepository) ListByNIF(ctx context.Context, nif string) ([]models.DeviceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.DeviceRecord{}
	for _, d := range r.devices {
		if d.NIF == nif {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

type MemoryChangeLogRepository struct {
	mu      sync.RWMutex
	entries []models.ChangeLogEntry
}

func NewMemoryChangeLogRepository() *MemoryChangeLogRepository {
	return &MemoryChangeLogRepository{}
}

func (r *MemoryChangeLogRepository) Append(ctx context.Context, e *models.ChangeLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *MemoryChangeLogRepository) ListByNIF(ctx context.Context, nif string) ([]models.ChangeLogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []models.ChangeLogEntry{}
	for _, e := range r.entries {
		if e.NIF == nif {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every entry in append order.
func (r *MemoryChangeLogRepository) All() []models.ChangeLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.ChangeLogEntry{}, r.entries...)
}

type MemoryAPICallRepository struct {
	mu      sync.RWMutex
	entries []models.APICallLog
}

func NewMemoryAPICallRepository() *MemoryAPICallRepository {
	return &MemoryAPICallRepository{}
}

func (r *MemoryAPICallRepository) Append(ctx context.Context, e *models.APICallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *MemoryAPICallRepository) All() []models.APICallLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.APICallLog{}, r.entries...)
}

// NewMemoryStores wires all four repositories in-memory.
func NewMemoryStores() *Stores {
	return &Stores{
		Users:    NewMemoryUserRepository(),
		Devices:  NewMemoryDeviceRepository(),
		Changes:  NewMemoryChangeLogRepository(),
		APICalls: NewMemoryAPICallRepository(),
	}
}
