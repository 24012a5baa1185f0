package tool

import (
	"context"
	"fmt"
)

// Provider supplies tools from an external source, such as an MCP server.
type Provider interface {
	// Tools returns the provider's current tool definitions.
	Tools(ctx context.Context) ([]*Tool, error)
	// Close releases resources owned by the provider.
	Close() error
	// ToolsChanged fires when the remote tool set is updated.
	// Providers without live updates return nil.
	ToolsChanged() <-chan struct{}
}

// Load fetches every provider's tools and upserts them into the registry.
// A remote tool replaces a local one with the same name.
func (r *Registry) Load(ctx context.Context, providers ...Provider) error {
	for _, p := range providers {
		if p == nil {
			continue
		}
		if _, err := r.sync(ctx, p, nil); err != nil {
			return err
		}
	}
	return nil
}

// Watch loads p's tools and then keeps them in sync each time p reports a
// change, until ctx is done or the change channel closes. Tools the
// provider dropped are removed from the registry. Reload failures are
// passed to onErr and keep the previous tool set.
func (r *Registry) Watch(ctx context.Context, p Provider, onErr func(error)) error {
	owned, err := r.sync(ctx, p, nil)
	if err != nil {
		return err
	}
	ch := p.ToolsChanged()
	if ch == nil {
		return nil
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				next, err := r.sync(ctx, p, owned)
				if err != nil {
					if onErr != nil {
						onErr(err)
					}
					continue
				}
				owned = next
			}
		}
	}()
	return nil
}

// sync upserts p's tools and removes names in prev that p no longer
// offers. It returns the names now owned by p.
func (r *Registry) sync(ctx context.Context, p Provider, prev map[string]struct{}) (map[string]struct{}, error) {
	tools, err := p.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tools: %w", err)
	}
	owned := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || t.Name == "" {
			continue
		}
		if err := r.Upsert(t); err != nil {
			return nil, err
		}
		owned[t.Name] = struct{}{}
	}
	for name := range prev {
		if _, ok := owned[name]; !ok {
			r.Remove(name)
		}
	}
	return owned, nil
}
