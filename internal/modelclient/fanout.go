package modelclient

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ConsultResult pairs a specialist role with its outcome for fan-out
// consultation.
type ConsultResult struct {
	Role SpecialistRole
	Resp *Response
	Err  error
}

// FanOut issues the same request to multiple specialist roles
// concurrently. This is a local optimization for consultations, not
// something the sequential main loop depends on. Each
// call uses its own copy of req so callers that build per-role
// conversation threads beforehand are never racing over shared state.
func (c *Client) FanOut(ctx context.Context, roles []SpecialistRole, reqFor func(SpecialistRole) Request) []ConsultResult {
	results := make([]ConsultResult, len(roles))
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	for i, role := range roles {
		i, role := i, role
		g.Go(func() error {
			resp, err := c.Call(gctx, role, reqFor(role))
			mu.Lock()
			results[i] = ConsultResult{Role: role, Resp: resp, Err: err}
			mu.Unlock()
			return nil // individual failures are data, not group-cancelling
		})
	}
	_ = g.Wait()
	return results
}
