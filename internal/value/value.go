// Package value implements the dynamically-tagged Value sum type shared by
// the parser, resolver, differ and provider layers.
package value

import (
	"fmt"
	"sort"
)

// Value is the common currency for resource attribute contents. Concrete
// variants are String, Int, Bool, List, Map, Null and Reference.
type Value interface {
	// Kind names the variant, used for diagnostics and schema error messages.
	Kind() string
	// Equal reports structural equality: Map keys match regardless of
	// order, List elements are compared position by position.
	Equal(other Value) bool
}

type String string

func (String) Kind() string { return "string" }
func (s String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && s == o
}

type Int int64

func (Int) Kind() string { return "int" }
func (i Int) Equal(other Value) bool {
	o, ok := other.(Int)
	return ok && i == o
}

type Bool bool

func (Bool) Kind() string { return "bool" }
func (b Bool) Equal(other Value) bool {
	o, ok := other.(Bool)
	return ok && b == o
}

type Null struct{}

func (Null) Kind() string { return "null" }
func (Null) Equal(other Value) bool {
	_, ok := other.(Null)
	return ok
}

type List []Value

func (List) Kind() string { return "list" }
func (l List) Equal(other Value) bool {
	o, ok := other.(List)
	if !ok || len(l) != len(o) {
		return false
	}
	for i := range l {
		if !l[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

type Map map[string]Value

func (Map) Kind() string { return "map" }
func (m Map) Equal(other Value) bool {
	o, ok := other.(Map)
	if !ok || len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// SortedKeys returns m's keys in deterministic order, used by anything that
// must walk a Map reproducibly (schema validation, CollectReferences,
// ToJSON).
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Span locates a token or node in its source file, used for diagnostics.
type Span struct {
	File   string
	Line   int
	Column int
	Offset int
	Length int
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Reference is an unresolved symbolic pointer of the form <binding>.<attribute>,
// e.g. main_vpc.id. It remains a Value variant until the Resolver substitutes
// a compile-time-known value or the Interpreter substitutes a runtime one
// generated by a Create effect. Target is the referent's canonical
// ir.ResourceKey.String() form, set by the resolver at the same time as
// Binding/Attribute; it is the join key the interpreter uses for
// ID-propagation since Binding alone is ambiguous across module instances
// that reuse the same let name.
type Reference struct {
	Binding   string
	Attribute string
	Target    string
	Span      Span
}

func (Reference) Kind() string { return "reference" }
func (r Reference) Equal(other Value) bool {
	o, ok := other.(Reference)
	return ok && r.Target == o.Target && r.Attribute == o.Attribute
}

func (r Reference) String() string {
	return r.Binding + "." + r.Attribute
}

// Walk calls fn for v and, recursively, for every Value nested inside a List
// or Map. fn's return value replaces the node (identity if unchanged); Walk
// rebuilds List/Map nodes immutably from the results.
func Walk(v Value, fn func(Value) Value) Value {
	switch t := v.(type) {
	case List:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = Walk(item, fn)
		}
		return fn(out)
	case Map:
		out := make(Map, len(t))
		for k, item := range t {
			out[k] = Walk(item, fn)
		}
		return fn(out)
	default:
		return fn(v)
	}
}

// CollectReferences returns every Reference value reachable from v.
func CollectReferences(v Value) []Reference {
	var refs []Reference
	var visit func(Value)
	visit = func(v Value) {
		switch t := v.(type) {
		case Reference:
			refs = append(refs, t)
		case List:
			for _, item := range t {
				visit(item)
			}
		case Map:
			for _, k := range t.SortedKeys() {
				visit(t[k])
			}
		}
	}
	visit(v)
	return refs
}
