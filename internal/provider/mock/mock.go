// Package mock is an in-memory Provider used by the orchestrator's own
// test suite and by anyone exercising spuff without real cloud
// credentials: a backend that needs no network access so the rest of the
// system stays testable.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spuff-dev/spuff/internal/provider"
	"github.com/spuff-dev/spuff/internal/schema"
)

func init() {
	provider.Register("mock", New)
}

// Provider is the in-memory backend. BootDelay controls how long a created
// instance stays in schema.StatusNew before WaitReady sees it as Active,
// letting tests exercise the polling loop without sleeping for real cloud
// boot times.
type Provider struct {
	mu        sync.Mutex
	instances map[string]schema.ProviderInstance
	snapshots map[string]schema.Snapshot
	timeouts  schema.Timeouts
	seq       int

	// BootDelay is read once per CreateInstance call.
	BootDelay time.Duration
}

// New implements provider.Factory. The token is accepted but unused — the
// mock provider has no notion of authentication.
func New(_ string, timeouts schema.Timeouts) (provider.Provider, error) {
	return &Provider{
		instances: map[string]schema.ProviderInstance{},
		snapshots: map[string]schema.Snapshot{},
		timeouts:  timeouts,
	}, nil
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) CreateInstance(_ context.Context, req schema.InstanceRequest) (schema.ProviderInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	inst := schema.ProviderInstance{
		ID:        fmt.Sprintf("mock-%d", p.seq),
		Status:    schema.StatusNew,
		CreatedAt: time.Now(),
	}
	p.instances[inst.ID] = inst

	if p.BootDelay <= 0 {
		inst.Status = schema.StatusActive
		inst.IP = "203.0.113.10"
		p.instances[inst.ID] = inst
	} else {
		go func(id string, delay time.Duration) {
			time.Sleep(delay)
			p.mu.Lock()
			defer p.mu.Unlock()
			if cur, ok := p.instances[id]; ok {
				cur.Status = schema.StatusActive
				cur.IP = "203.0.113.10"
				p.instances[id] = cur
			}
		}(inst.ID, p.BootDelay)
	}

	return inst, nil
}

func (p *Provider) DestroyInstance(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.instances, id) // idempotent: deleting an absent key is a no-op
	return nil
}

func (p *Provider) GetInstance(_ context.Context, id string) (schema.ProviderInstance, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst, ok := p.instances[id]
	return inst, ok, nil
}

func (p *Provider) ListInstances(_ context.Context) ([]schema.ProviderInstance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]schema.ProviderInstance, 0, len(p.instances))
	for _, inst := range p.instances {
		out = append(out, inst)
	}
	return out, nil
}

func (p *Provider) WaitReady(ctx context.Context, id string) (schema.ProviderInstance, error) {
	return provider.PollUntilReady(ctx, p.timeouts.PollInterval, p.timeouts.InstanceReady,
		func(ctx context.Context) (schema.ProviderInstance, bool, error) {
			inst, ok, _ := p.GetInstance(ctx, id)
			if !ok {
				return schema.ProviderInstance{}, false, provider.NewNotFoundError("instance", id)
			}
			return inst, inst.Ready(), nil
		})
}

func (p *Provider) CreateSnapshot(_ context.Context, id, name string) (schema.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.instances[id]; !ok {
		return schema.Snapshot{}, provider.NewNotFoundError("instance", id)
	}
	now := time.Now()
	snap := schema.Snapshot{ID: fmt.Sprintf("snap-%s-%d", id, now.UnixNano()), Name: name, CreatedAt: &now}
	p.snapshots[snap.ID] = snap
	return snap, nil
}

func (p *Provider) ListSnapshots(_ context.Context) ([]schema.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]schema.Snapshot, 0, len(p.snapshots))
	for _, s := range p.snapshots {
		out = append(out, s)
	}
	return out, nil
}

func (p *Provider) DeleteSnapshot(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.snapshots, id)
	return nil
}
