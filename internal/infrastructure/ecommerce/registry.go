package ecommerce

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shopsync/backend/internal/domain/integration"
)

// Registry holds the configured platform adapters keyed by platform code
type Registry struct {
	mu        sync.RWMutex
	platforms map[integration.PlatformCode]integration.EcommercePlatform
}

// NewRegistry creates a registry with the given adapters
func NewRegistry(platforms ...integration.EcommercePlatform) *Registry {
	r := &Registry{platforms: make(map[integration.PlatformCode]integration.EcommercePlatform)}
	for _, p := range platforms {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the adapter for its platform code
func (r *Registry) Register(platform integration.EcommercePlatform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.platforms[platform.PlatformCode()] = platform
}

// GetPlatform returns the adapter for the given code
func (r *Registry) GetPlatform(code integration.PlatformCode) (integration.EcommercePlatform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.platforms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrPlatformNotRegistered, code)
	}
	return p, nil
}

// ListPlatforms returns all adapters ordered by platform code
func (r *Registry) ListPlatforms() []integration.EcommercePlatform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]integration.EcommercePlatform, 0, len(r.platforms))
	for _, p := range r.platforms {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].PlatformCode() < list[j].PlatformCode()
	})
	return list
}

// Resolve expands a target into adapters; "all" yields every registered adapter
func (r *Registry) Resolve(target integration.PlatformCode) ([]integration.EcommercePlatform, error) {
	if target == integration.PlatformCodeAll {
		list := r.ListPlatforms()
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: no adapters configured", integration.ErrPlatformNotRegistered)
		}
		return list, nil
	}
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: %s", integration.ErrInvalidPlatformCode, target)
	}
	p, err := r.GetPlatform(target)
	if err != nil {
		return nil, err
	}
	return []integration.EcommercePlatform{p}, nil
}

// Ensure Registry implements EcommercePlatformRegistry interface
var _ integration.EcommercePlatformRegistry = (*Registry)(nil)
