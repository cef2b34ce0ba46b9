// Package provider defines the cloud-agnostic capability set every backend
// implements, plus the name→factory registry used to select one at
// runtime and the typed error taxonomy callers classify failures with.
package provider

import (
	"context"
	"time"

	"github.com/spuff-dev/spuff/internal/schema"
)

// Provider is any cloud backend spuff can provision through.
// CreateInstance may return while the instance is still initializing;
// WaitReady blocks the caller until it is actually usable.
type Provider interface {
	// Name returns the lowercase registry key (e.g. "digitalocean").
	Name() string

	CreateInstance(ctx context.Context, req schema.InstanceRequest) (schema.ProviderInstance, error)

	// DestroyInstance must be idempotent: a second call after success
	// also returns nil, and not-found counts as success.
	DestroyInstance(ctx context.Context, id string) error

	// GetInstance returns (instance, true) or (zero value, false) if the
	// id is unknown to the provider. It never returns an error for
	// not-found; that is represented by the boolean.
	GetInstance(ctx context.Context, id string) (schema.ProviderInstance, bool, error)

	// ListInstances returns only instances carrying
	// schema.ManagedByLabel=schema.ManagedByValue.
	ListInstances(ctx context.Context) ([]schema.ProviderInstance, error)

	// WaitReady polls until the instance is Active with a real IP or the
	// configured InstanceReady timeout elapses.
	WaitReady(ctx context.Context, id string) (schema.ProviderInstance, error)

	CreateSnapshot(ctx context.Context, id, name string) (schema.Snapshot, error)
	ListSnapshots(ctx context.Context) ([]schema.Snapshot, error)

	// DeleteSnapshot is idempotent, same contract as DestroyInstance.
	DeleteSnapshot(ctx context.Context, id string) error
}

// Factory builds a Provider from an API token and the timeout record to
// honor for every blocking call.
type Factory func(token string, timeouts schema.Timeouts) (Provider, error)

// pollUntil is a small shared helper adapters can use to implement
// WaitReady: poll fn every interval until it reports ready, an error, or
// the deadline elapses.
func pollUntil(ctx context.Context, interval, deadline time.Duration, fn func(context.Context) (schema.ProviderInstance, bool, error)) (schema.ProviderInstance, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		inst, ready, err := fn(ctx)
		if err != nil {
			return schema.ProviderInstance{}, err
		}
		if ready {
			return inst, nil
		}
		select {
		case <-ctx.Done():
			return schema.ProviderInstance{}, NewTimeoutError("wait_ready", deadline.String())
		case <-ticker.C:
		}
	}
}

// PollUntilReady is the exported form of pollUntil for adapters living in
// sub-packages (mock, digitalocean).
func PollUntilReady(ctx context.Context, interval, deadline time.Duration, fn func(context.Context) (schema.ProviderInstance, bool, error)) (schema.ProviderInstance, error) {
	return pollUntil(ctx, interval, deadline, fn)
}
