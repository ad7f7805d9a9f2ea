// Package ir holds the normalized, resolver-output resource model: the
// in-memory shapes that flow from the resolver into the differ, the
// interpreter and the state store.
package ir

import (
	"fmt"
	"strings"

	"github.com/carina-lang/carina/internal/value"
)

// ResourceKey is the stable identity of a resource within a state document:
// its namespace path (module instance chain), qualified type and local name.
//
// NamespacePath is stored pre-joined with "/" rather than as a []string so
// that ResourceKey stays comparable and usable as a map key directly; use
// Segments to recover the individual path components.
type ResourceKey struct {
	NamespacePath string
	QualifiedType string
	LocalName     string
}

func NewResourceKey(namespacePath []string, qualifiedType, localName string) ResourceKey {
	return ResourceKey{NamespacePath: strings.Join(namespacePath, "/"), QualifiedType: qualifiedType, LocalName: localName}
}

// Segments splits NamespacePath back into its module-instance components.
func (k ResourceKey) Segments() []string {
	if k.NamespacePath == "" {
		return nil
	}
	return strings.Split(k.NamespacePath, "/")
}

// String renders a ResourceKey as "ns1/ns2/qualified_type.local_name", the
// form used in plan output and state file JSON keys.
func (k ResourceKey) String() string {
	var b strings.Builder
	if k.NamespacePath != "" {
		b.WriteString(k.NamespacePath)
		b.WriteByte('/')
	}
	b.WriteString(k.QualifiedType)
	b.WriteByte('.')
	b.WriteString(k.LocalName)
	return b.String()
}

// ParseResourceKey parses the String() form back into a ResourceKey.
func ParseResourceKey(s string) (ResourceKey, error) {
	segs := strings.Split(s, "/")
	last := segs[len(segs)-1]
	ns := segs[:len(segs)-1]
	dot := strings.LastIndex(last, ".")
	if dot < 0 {
		return ResourceKey{}, fmt.Errorf("invalid resource key %q: missing '.'", s)
	}
	return ResourceKey{NamespacePath: strings.Join(ns, "/"), QualifiedType: last[:dot], LocalName: last[dot+1:]}, nil
}

// Resource is the desired-state entity produced by the resolver: fully
// expanded (modules substituted in), with every locally-resolvable
// Reference already inlined.
type Resource struct {
	QualifiedType string
	LocalName     string
	NamespacePath []string
	Attrs         value.Map
	Span          value.Span
	DependsOn     map[ResourceKey]struct{}
}

func (r *Resource) Key() ResourceKey {
	return NewResourceKey(r.NamespacePath, r.QualifiedType, r.LocalName)
}

// AddDependency records an edge to another resource's key.
func (r *Resource) AddDependency(k ResourceKey) {
	if r.DependsOn == nil {
		r.DependsOn = map[ResourceKey]struct{}{}
	}
	r.DependsOn[k] = struct{}{}
}

// State is the actual, last-known-applied shape of a resource: same shape
// as Resource, plus the provider-assigned identity and what the provider
// last reported as observed. DependsOn is carried forward from the
// Resource that produced it at apply time, so a later destroy (which has
// no .crn file to re-resolve) still orders deletes by real dependency
// edges rather than falling back to key order.
type State struct {
	QualifiedType string
	LocalName     string
	NamespacePath []string
	Attrs         value.Map
	ProviderID    string
	LastObserved  value.Map
	DependsOn     map[ResourceKey]struct{}
}

// AddDependency records an edge to another resource's key.
func (s *State) AddDependency(k ResourceKey) {
	if s.DependsOn == nil {
		s.DependsOn = map[ResourceKey]struct{}{}
	}
	s.DependsOn[k] = struct{}{}
}

func (s *State) Key() ResourceKey {
	return NewResourceKey(s.NamespacePath, s.QualifiedType, s.LocalName)
}

// StateDocument is the persisted representation of all known resources.
type StateDocument struct {
	Version   int
	Serial    int
	Lineage   string
	Resources map[ResourceKey]*State
}

func NewStateDocument(lineage string) *StateDocument {
	return &StateDocument{Version: 1, Serial: 0, Lineage: lineage, Resources: map[ResourceKey]*State{}}
}

// Clone produces a deep-enough copy for optimistic-concurrency comparisons:
// the Resources map and its State values are copied, Attrs/LastObserved
// value.Maps are shared (Value is treated as immutable once constructed).
func (d *StateDocument) Clone() *StateDocument {
	out := &StateDocument{Version: d.Version, Serial: d.Serial, Lineage: d.Lineage, Resources: make(map[ResourceKey]*State, len(d.Resources))}
	for k, v := range d.Resources {
		copied := *v
		out.Resources[k] = &copied
	}
	return out
}
