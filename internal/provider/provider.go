// Package provider defines the plain Create/Read/Update/Delete contract
// every resource backend implements (spec.md §4.7), plus a Registry that
// dispatches by qualified resource type.
//
// Grounded on original_source/carina-core/src/provider.rs's trait Provider
// surface, re-expressed as a Go interface instead of the original's
// grpc-plugin transport (SPEC_FULL.md §2 records dropping the plugin RPC
// layer: a single in-process binary has no process boundary to cross).
package provider

import (
	"context"
	"errors"

	"github.com/carina-lang/carina/internal/diag"
	"github.com/carina-lang/carina/internal/schema"
	"github.com/carina-lang/carina/internal/value"
)

// Observation is what Create/Read/Update return: the provider-assigned
// identity plus everything the provider reports back as observed state.
type Observation struct {
	ProviderID string
	Observed   value.Map
}

type notFoundError struct{}

func (notFoundError) Error() string { return "resource not found" }

// NotFound is the sentinel a Provider's Read implementation returns
// (wrapped or bare) to signal the resource is gone.
var NotFound error = notFoundError{}

// IsNotFound reports whether err is, or wraps, the NotFound sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, NotFound)
}

// Provider implements the lifecycle operations for one or more resource
// types. Create, Read, Update and Delete are context-bound since they cross
// a network boundary to the underlying cloud API; Types and Schema are
// local lookups.
type Provider interface {
	// Types lists the qualified resource types this provider handles.
	Types() []string

	// Schema returns the ResourceSchema for one of the types this
	// provider handles.
	Schema(qualifiedType string) (*schema.ResourceSchema, bool)

	Create(ctx context.Context, qualifiedType string, attrs value.Map) (Observation, error)
	Read(ctx context.Context, qualifiedType, providerID string) (Observation, error)
	Update(ctx context.Context, qualifiedType, providerID string, attrs value.Map) (Observation, error)
	Delete(ctx context.Context, qualifiedType, providerID string) error
}

// Registry dispatches resource-type operations to whichever registered
// Provider declares that type, and doubles as a plan.Registry for schema
// lookups during diffing.
type Registry struct {
	byType map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{byType: map[string]Provider{}}
}

// Register adds p and indexes it by every type it declares. A later
// registration for the same type wins, matching the teacher's provider
// registry precedent of "last registration wins" for override-friendly
// testing setups.
func (r *Registry) Register(p Provider) {
	for _, t := range p.Types() {
		r.byType[t] = p
	}
}

func (r *Registry) providerFor(qualifiedType string) (Provider, error) {
	p, ok := r.byType[qualifiedType]
	if !ok {
		return nil, diag.UnsupportedType(qualifiedType)
	}
	return p, nil
}

// Schemas returns every registered type's schema, keyed by qualified type.
// The resolver needs this up front (before any resource is resolved) to
// decide whether a referenced attribute is Computed.
func (r *Registry) Schemas() map[string]*schema.ResourceSchema {
	out := make(map[string]*schema.ResourceSchema, len(r.byType))
	for t, p := range r.byType {
		if s, ok := p.Schema(t); ok {
			out[t] = s
		}
	}
	return out
}

func (r *Registry) Lookup(qualifiedType string) (*schema.ResourceSchema, bool) {
	p, ok := r.byType[qualifiedType]
	if !ok {
		return nil, false
	}
	return p.Schema(qualifiedType)
}

func (r *Registry) Create(ctx context.Context, qualifiedType string, attrs value.Map) (Observation, error) {
	p, err := r.providerFor(qualifiedType)
	if err != nil {
		return Observation{}, err
	}
	return p.Create(ctx, qualifiedType, attrs)
}

func (r *Registry) Read(ctx context.Context, qualifiedType, providerID string) (Observation, error) {
	p, err := r.providerFor(qualifiedType)
	if err != nil {
		return Observation{}, err
	}
	return p.Read(ctx, qualifiedType, providerID)
}

func (r *Registry) Update(ctx context.Context, qualifiedType, providerID string, attrs value.Map) (Observation, error) {
	p, err := r.providerFor(qualifiedType)
	if err != nil {
		return Observation{}, err
	}
	return p.Update(ctx, qualifiedType, providerID, attrs)
}

func (r *Registry) Delete(ctx context.Context, qualifiedType, providerID string) error {
	p, err := r.providerFor(qualifiedType)
	if err != nil {
		return err
	}
	return p.Delete(ctx, qualifiedType, providerID)
}
