package core

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PatientDirectory is the consumed interface of the patient registry.
// Not-found is reported as (nil, nil) so callers cannot confuse a miss
// with an infrastructure failure; the Manager folds both into the same
// outward response anyway.
type PatientDirectory interface {
	FindByEmail(ctx context.Context, email string) (*Patient, error)
	FindByPhone(ctx context.Context, e164 string) (*Patient, error)
	GetByID(ctx context.Context, id string) (*Patient, error)
}

// MemoryDirectory is a registry stub for tests and local development.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byID    map[string]Patient
	byEmail map[string]string
	byPhone map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byID:    make(map[string]Patient),
		byEmail: make(map[string]string),
		byPhone: make(map[string]string),
	}
}

// Add registers a patient, assigning an ID when none is set, and returns
// the stored record.
func (d *MemoryDirectory) Add(p Patient) Patient {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	d.byID[p.ID] = p
	if p.Email != "" {
		d.byEmail[NormalizeIdentifier(p.Email)] = p.ID
	}
	if p.Phone != "" {
		d.byPhone[NormalizeIdentifier(p.Phone)] = p.ID
	}
	return p
}

func (d *MemoryDirectory) FindByEmail(_ context.Context, email string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byEmail[NormalizeIdentifier(email)]
	if !ok {
		return nil, nil
	}
	p := d.byID[id]
	return &p, nil
}

func (d *MemoryDirectory) FindByPhone(_ context.Context, e164 string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byPhone[NormalizeIdentifier(e164)]
	if !ok {
		return nil, nil
	}
	p := d.byID[id]
	return &p, nil
}

func (d *MemoryDirectory) GetByID(_ context.Context, id string) (*Patient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
