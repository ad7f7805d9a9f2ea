// Package testprovider is an in-memory Provider used by the interpreter's
// own tests and available to `carina` users as a zero-dependency sandbox
// backend. It declares the single type "test.resource"; Create assigns a
// sequential id, Read/Update/Delete operate against an in-memory map.
//
// Grounded on original_source/carina-core/src/interpreter.rs's test-only
// MockProvider fixture, promoted here to a real package so it can also
// back `provider test { ... }` in a .crn file for tutorials and CI
// pipelines that shouldn't touch real cloud accounts.
package testprovider

import (
	"context"
	"fmt"
	"sync"

	"github.com/carina-lang/carina/internal/provider"
	"github.com/carina-lang/carina/internal/schema"
	"github.com/carina-lang/carina/internal/value"
)

// Provider is safe for concurrent use; the interpreter applies plan
// entries sequentially today but nothing prevents a future worker pool
// from parallelizing independent subtrees.
type Provider struct {
	mu       sync.Mutex
	next     int
	resources map[string]value.Map // providerID -> observed attrs

	// FailCreate, when set, makes every Create for this type return the
	// named error instead of succeeding -- used by interpreter tests that
	// exercise ContinueOnError and partial-failure persistence.
	FailCreate map[string]error
}

func New() *Provider {
	return &Provider{resources: map[string]value.Map{}}
}

func (p *Provider) Types() []string { return []string{"test.resource"} }

func (p *Provider) Schema(qualifiedType string) (*schema.ResourceSchema, bool) {
	if qualifiedType != "test.resource" {
		return nil, false
	}
	return schema.NewResourceSchema("test.resource").
		WithAttribute("name", schema.AttributeSchema{Type: schema.String(), Required: true}).
		WithAttribute("value", schema.AttributeSchema{Type: schema.String()}).
		WithAttribute("id", schema.AttributeSchema{Type: schema.String(), Computed: true}), true
}

func (p *Provider) Create(ctx context.Context, qualifiedType string, attrs value.Map) (provider.Observation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err, ok := p.FailCreate[qualifiedType]; ok {
		return provider.Observation{}, err
	}

	p.next++
	id := fmt.Sprintf("test-%d", p.next)
	observed := value.Map{}
	for k, v := range attrs {
		observed[k] = v
	}
	observed["id"] = value.String(id)
	p.resources[id] = observed
	return provider.Observation{ProviderID: id, Observed: observed}, nil
}

func (p *Provider) Read(ctx context.Context, qualifiedType, providerID string) (provider.Observation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	observed, ok := p.resources[providerID]
	if !ok {
		return provider.Observation{}, provider.NotFound
	}
	return provider.Observation{ProviderID: providerID, Observed: observed}, nil
}

func (p *Provider) Update(ctx context.Context, qualifiedType, providerID string, attrs value.Map) (provider.Observation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.resources[providerID]; !ok {
		return provider.Observation{}, provider.NotFound
	}
	observed := value.Map{}
	for k, v := range attrs {
		observed[k] = v
	}
	observed["id"] = value.String(providerID)
	p.resources[providerID] = observed
	return provider.Observation{ProviderID: providerID, Observed: observed}, nil
}

func (p *Provider) Delete(ctx context.Context, qualifiedType, providerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resources, providerID)
	return nil
}
