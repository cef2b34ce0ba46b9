// Package digitalocean adapts the generic Provider contract to the
// DigitalOcean Droplets REST API. The surface is small enough (eight
// calls across droplets, droplet actions, and snapshots) that the wire
// calls are written directly against net/http;
// retry/backoff and error classification go through provider.Retry.
package digitalocean

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/spuff-dev/spuff/internal/provider"
	"github.com/spuff-dev/spuff/internal/schema"
)

const baseURL = "https://api.digitalocean.com/v2"

func init() {
	provider.Register("digitalocean", New)
}

// Provider talks to the DigitalOcean Droplets API.
type Provider struct {
	token      string
	timeouts   schema.Timeouts
	httpClient *http.Client
	baseURL    string
}

// New implements provider.Factory.
func New(token string, timeouts schema.Timeouts) (provider.Provider, error) {
	if token == "" {
		return nil, provider.NewAuthenticationError("digitalocean", "DIGITALOCEAN_TOKEN is empty")
	}
	return &Provider{
		token:      token,
		timeouts:   timeouts,
		httpClient: &http.Client{Timeout: timeouts.HTTPRequest},
		baseURL:    baseURL,
	}, nil
}

func (p *Provider) Name() string { return "digitalocean" }

type createDropletRequest struct {
	Name     string            `json:"name"`
	Region   string            `json:"region"`
	Size     string            `json:"size"`
	Image    any               `json:"image"`
	UserData string            `json:"user_data,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
}

type dropletNetwork struct {
	IPAddress string `json:"ip_address"`
	Type      string `json:"type"`
}

type droplet struct {
	ID        int       `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Networks  struct {
		V4 []dropletNetwork `json:"v4"`
	} `json:"networks"`
}

func imageValue(img schema.Image) any {
	switch img.Kind {
	case schema.ImageUbuntu:
		return fmt.Sprintf("ubuntu-%s-x64", img.Value)
	case schema.ImageDebian:
		return fmt.Sprintf("debian-%s-x64", img.Value)
	case schema.ImageCustom, schema.ImageSnapshot:
		if id, err := strconv.Atoi(img.Value); err == nil {
			return id
		}
		return img.Value
	default:
		return img.Value
	}
}

func toProviderInstance(d droplet) schema.ProviderInstance {
	ip := "0.0.0.0"
	for _, n := range d.Networks.V4 {
		if n.Type == "public" {
			ip = n.IPAddress
			break
		}
	}
	status := schema.UnknownStatus(d.Status)
	switch d.Status {
	case "new":
		status = schema.StatusNew
	case "active":
		status = schema.StatusActive
	case "off":
		status = schema.StatusOff
	case "archive":
		status = schema.StatusArchive
	}
	return schema.ProviderInstance{
		ID:        strconv.Itoa(d.ID),
		IP:        ip,
		Status:    status,
		CreatedAt: d.CreatedAt,
	}
}

func (p *Provider) CreateInstance(ctx context.Context, req schema.InstanceRequest) (schema.ProviderInstance, error) {
	labels := schema.WithManagedByLabel(req.Labels)
	tags := make([]string, 0, len(labels))
	for k, v := range labels {
		tags = append(tags, k+":"+v)
	}

	body := createDropletRequest{
		Name:     req.Name,
		Region:   req.Region,
		Size:     req.Size,
		Image:    imageValue(req.Image),
		UserData: req.UserData,
		Tags:     tags,
	}

	var resp struct {
		Droplet droplet `json:"droplet"`
	}
	if err := p.do(ctx, http.MethodPost, "/droplets", body, &resp); err != nil {
		return schema.ProviderInstance{}, err
	}
	return toProviderInstance(resp.Droplet), nil
}

func (p *Provider) DestroyInstance(ctx context.Context, id string) error {
	err := p.do(ctx, http.MethodDelete, "/droplets/"+id, nil, nil)
	if err != nil {
		var pe *provider.Error
		if errors.As(err, &pe) && pe.Type == provider.ErrNotFound {
			return nil // destroy is idempotent: not-found counts as success
		}
		return err
	}
	return nil
}

func (p *Provider) GetInstance(ctx context.Context, id string) (schema.ProviderInstance, bool, error) {
	var resp struct {
		Droplet droplet `json:"droplet"`
	}
	err := p.do(ctx, http.MethodGet, "/droplets/"+id, nil, &resp)
	if err != nil {
		var pe *provider.Error
		if errors.As(err, &pe) && pe.Type == provider.ErrNotFound {
			return schema.ProviderInstance{}, false, nil
		}
		return schema.ProviderInstance{}, false, err
	}
	return toProviderInstance(resp.Droplet), true, nil
}

func (p *Provider) ListInstances(ctx context.Context) ([]schema.ProviderInstance, error) {
	var resp struct {
		Droplets []droplet `json:"droplets"`
	}
	path := fmt.Sprintf("/droplets?tag_name=%s:%s", schema.ManagedByLabel, schema.ManagedByValue)
	if err := p.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]schema.ProviderInstance, 0, len(resp.Droplets))
	for _, d := range resp.Droplets {
		out = append(out, toProviderInstance(d))
	}
	return out, nil
}

func (p *Provider) WaitReady(ctx context.Context, id string) (schema.ProviderInstance, error) {
	return provider.PollUntilReady(ctx, p.timeouts.PollInterval, p.timeouts.InstanceReady,
		func(ctx context.Context) (schema.ProviderInstance, bool, error) {
			inst, ok, err := p.GetInstance(ctx, id)
			if err != nil {
				return schema.ProviderInstance{}, false, err
			}
			if !ok {
				return schema.ProviderInstance{}, false, provider.NewNotFoundError("instance", id)
			}
			return inst, inst.Ready(), nil
		})
}

type doAction struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
}

func (p *Provider) CreateSnapshot(ctx context.Context, id, name string) (schema.Snapshot, error) {
	body := map[string]string{"type": "snapshot", "name": name}
	var resp struct {
		Action doAction `json:"action"`
	}
	if err := p.do(ctx, http.MethodPost, "/droplets/"+id+"/actions", body, &resp); err != nil {
		return schema.Snapshot{}, err
	}

	deadline := time.Now().Add(p.timeouts.ActionComplete)
	for {
		var action struct {
			Action doAction `json:"action"`
		}
		if err := p.do(ctx, http.MethodGet, fmt.Sprintf("/droplets/%s/actions/%d", id, resp.Action.ID), nil, &action); err != nil {
			return schema.Snapshot{}, err
		}
		switch action.Action.Status {
		case "completed":
			now := time.Now()
			return schema.Snapshot{ID: fmt.Sprintf("%s-snapshot", id), Name: name, CreatedAt: &now}, nil
		case "errored":
			return schema.Snapshot{}, provider.NewAPIError(500, "snapshot action errored")
		}
		if time.Now().After(deadline) {
			return schema.Snapshot{}, provider.NewTimeoutError("create_snapshot", p.timeouts.ActionComplete.String())
		}
		select {
		case <-ctx.Done():
			return schema.Snapshot{}, ctx.Err()
		case <-time.After(p.timeouts.PollInterval):
		}
	}
}

func (p *Provider) ListSnapshots(ctx context.Context) ([]schema.Snapshot, error) {
	var resp struct {
		Snapshots []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			CreatedAt string `json:"created_at"`
		} `json:"snapshots"`
	}
	if err := p.do(ctx, http.MethodGet, "/snapshots?resource_type=droplet", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]schema.Snapshot, 0, len(resp.Snapshots))
	for _, s := range resp.Snapshots {
		t, _ := time.Parse(time.RFC3339, s.CreatedAt)
		out = append(out, schema.Snapshot{ID: s.ID, Name: s.Name, CreatedAt: &t})
	}
	return out, nil
}

func (p *Provider) DeleteSnapshot(ctx context.Context, id string) error {
	err := p.do(ctx, http.MethodDelete, "/snapshots/"+id, nil, nil)
	if err != nil {
		var pe *provider.Error
		if errors.As(err, &pe) && pe.Type == provider.ErrNotFound {
			return nil
		}
		return err
	}
	return nil
}

// do issues one HTTP request, classifying the response into the provider
// error taxonomy and retrying RateLimit/Timeout/Network failures via
// provider.Retry.
func (p *Provider) do(ctx context.Context, method, path string, body, out any) error {
	return provider.Retry(ctx, provider.DefaultRetryConfig(), func(ctx context.Context, attempt int) error {
		var reader io.Reader
		if body != nil {
			b, err := json.Marshal(body)
			if err != nil {
				return provider.NewInvalidConfigError("body", err.Error())
			}
			reader = bytes.NewReader(b)
		}

		req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
		if err != nil {
			return provider.NewNetworkError(err)
		}
		req.Header.Set("Authorization", "Bearer "+p.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return provider.NewNetworkError(err)
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return provider.NewAuthenticationError("digitalocean", string(respBody))
		case resp.StatusCode == http.StatusNotFound:
			return provider.NewNotFoundError("resource", path)
		case resp.StatusCode == http.StatusTooManyRequests:
			var retryAfter *int
			if v := resp.Header.Get("Retry-After"); v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					retryAfter = &n
				}
			}
			return provider.NewRateLimitError(retryAfter)
		case resp.StatusCode == 422 || resp.StatusCode == 400:
			return provider.NewInvalidConfigError("request", string(respBody))
		case resp.StatusCode >= 500:
			return provider.NewAPIError(resp.StatusCode, string(respBody))
		case resp.StatusCode >= 300:
			return provider.NewAPIError(resp.StatusCode, string(respBody))
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	})
}
