package modelclient

import (
	"context"
	"time"

	"autonomy/internal/logging"
)

// HostConfig is one entry in a role's fallback chain.
type HostConfig struct {
	Host  string
	Model string
}

// Config maps specialist roles to a preferred host plus an ordered
// fallback list.
type Config struct {
	Roles   map[SpecialistRole][]HostConfig
	Timeout time.Duration
}

// Client is the unified Model Client.
type Client struct {
	cfg       Config
	transport Transport
}

// New constructs a Client over a Transport (typically one generic HTTP
// transport shared across all hosts).
func New(cfg Config, transport Transport) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{cfg: cfg, transport: transport}
}

// Call selects a model per role from configuration and tries the
// preferred host, then its fallback list in order. It returns a
// typed CallError only after every host in the chain has failed.
func (c *Client) Call(ctx context.Context, role SpecialistRole, req Request) (*Response, error) {
	chain, ok := c.cfg.Roles[role]
	if !ok || len(chain) == 0 {
		return nil, &CallError{Kind: ErrExhausted, Host: "", Err: errNoHostsConfigured(role)}
	}

	var lastErr error
	for _, hc := range chain {
		callReq := req
		callReq.Host = hc.Host
		callReq.Model = hc.Model

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		resp, err := c.transport.Call(callCtx, callReq)
		cancel()

		if err == nil {
			return resp, nil
		}
		logging.Get(logging.CategoryModel).Warn("call to %s (role=%s) failed: %v, trying fallback", hc.Host, role, err)
		lastErr = err
	}

	return nil, &CallError{Kind: ErrExhausted, Host: chain[len(chain)-1].Host, Err: lastErr}
}

type noHostsConfiguredError struct {
	role SpecialistRole
}

func (e *noHostsConfiguredError) Error() string {
	return "no hosts configured for role " + string(e.role)
}

func errNoHostsConfigured(role SpecialistRole) error {
	return &noHostsConfiguredError{role: role}
}
