// Package ast defines the parsed syntax tree for the .crn configuration
// language: providers, backends, imports, input/output blocks, let
// bindings, module invocations and resource literals, each carrying a
// source span for diagnostics and for the formatter's round-trip guarantee.
package ast

import "github.com/carina-lang/carina/internal/value"

// Node is implemented by every AST element that can be located in source.
type Node interface {
	Span() value.Span
}

// File is the parsed form of one .crn source file: an ordered list of
// top-level statements, in the exact order they appeared in source (the
// formatter never reorders).
type File struct {
	Path       string
	Statements []Statement
}

// Statement is a top-level directive: backend, provider, import, input,
// output, let, or a bare (unbound) resource literal.
type Statement interface {
	Node
	statementNode()
}

// Import is `import <path> as <alias>`.
type Import struct {
	Path    string
	Alias   string
	SrcSpan value.Span
}

func (i *Import) Span() value.Span { return i.SrcSpan }
func (i *Import) statementNode()   {}

// Backend is `backend <kind> { k = v, ... }`.
type Backend struct {
	Kind    string
	Attrs   []AttrAssign
	SrcSpan value.Span
}

func (b *Backend) Span() value.Span { return b.SrcSpan }
func (b *Backend) statementNode()   {}

// Provider is `provider <name> { k = v, ... }`.
type Provider struct {
	Name    string
	Attrs   []AttrAssign
	SrcSpan value.Span
}

func (p *Provider) Span() value.Span { return p.SrcSpan }
func (p *Provider) statementNode()   {}

// InputParam is one entry of an `input { ... }` block: `name: Type [= default]`.
type InputParam struct {
	Name    string
	Type    TypeExpr
	Default Expr // nil if no default
	SrcSpan value.Span
}

func (p InputParam) Span() value.Span { return p.SrcSpan }

// InputBlock is `input { name: Type [= default], ... }`.
type InputBlock struct {
	Params  []InputParam
	SrcSpan value.Span
}

func (b *InputBlock) Span() value.Span { return b.SrcSpan }
func (b *InputBlock) statementNode()   {}

// OutputParam is one entry of an `output { ... }` block: `name: Type = expr`.
type OutputParam struct {
	Name    string
	Type    TypeExpr
	Value   Expr
	SrcSpan value.Span
}

func (p OutputParam) Span() value.Span { return p.SrcSpan }

// OutputBlock is `output { name: Type = expr, ... }`.
type OutputBlock struct {
	Params  []OutputParam
	SrcSpan value.Span
}

func (b *OutputBlock) Span() value.Span { return b.SrcSpan }
func (b *OutputBlock) statementNode()   {}

// Let is `let <name> = <resource-literal | module-call>`.
type Let struct {
	Name    string
	Value   Bindable
	SrcSpan value.Span
}

func (l *Let) Span() value.Span { return l.SrcSpan }
func (l *Let) statementNode()   {}

// Bindable is the right-hand side of a let binding: either a resource
// literal or a module invocation.
type Bindable interface {
	Node
	bindableNode()
}

// ResourceLiteral is `aws.<service>.<resource> { k = v, ... }`, either bound
// via `let name = ...` or appearing bare at top level (an anonymous
// resource, registered under a synthetic key derived from its `name`
// attribute per spec.md §4.3).
type ResourceLiteral struct {
	QualifiedType string
	Attrs         []AttrAssign
	SrcSpan       value.Span
}

func (r *ResourceLiteral) Span() value.Span { return r.SrcSpan }
func (r *ResourceLiteral) statementNode()   {}
func (r *ResourceLiteral) bindableNode()    {}

// ModuleCall is `<alias> { k = v, ... }` where alias names an imported
// module.
type ModuleCall struct {
	Alias   string
	Args    []AttrAssign
	SrcSpan value.Span
}

func (m *ModuleCall) Span() value.Span { return m.SrcSpan }
func (m *ModuleCall) statementNode()   {}
func (m *ModuleCall) bindableNode()    {}

// AttrAssign is one `name = expr` pair inside a block body.
type AttrAssign struct {
	Name    string
	Value   Expr
	SrcSpan value.Span
}

func (a AttrAssign) Span() value.Span { return a.SrcSpan }

// Expr is the right-hand side grammar for attribute values: literals, list
// and object literals, and dotted identifiers (which may denote either a
// symbolic reference to a binding's attribute or a namespaced enum literal
// -- the resolver disambiguates using scope, per spec.md §4.2/§4.3).
type Expr interface {
	Node
	exprNode()
}

type StringLit struct {
	Value   string
	SrcSpan value.Span
}

func (s *StringLit) Span() value.Span { return s.SrcSpan }
func (s *StringLit) exprNode()        {}

type IntLit struct {
	Value   int64
	SrcSpan value.Span
}

func (i *IntLit) Span() value.Span { return i.SrcSpan }
func (i *IntLit) exprNode()        {}

type BoolLit struct {
	Value   bool
	SrcSpan value.Span
}

func (b *BoolLit) Span() value.Span { return b.SrcSpan }
func (b *BoolLit) exprNode()        {}

// ListLit is a bracketed list literal `[v, v, ...]`.
type ListLit struct {
	Items   []Expr
	SrcSpan value.Span
}

func (l *ListLit) Span() value.Span { return l.SrcSpan }
func (l *ListLit) exprNode()        {}

// ObjectLit is a brace object literal `{k = v, ...}`.
type ObjectLit struct {
	Attrs   []AttrAssign
	SrcSpan value.Span
}

func (o *ObjectLit) Span() value.Span { return o.SrcSpan }
func (o *ObjectLit) exprNode()        {}

// DottedIdent is a dotted identifier path, e.g. `main_vpc.id` or
// `aws.Region.us_east_1`. Whether it is a symbolic Reference into scope or
// a namespaced enum literal is a scope-dependent decision left to the
// resolver (spec.md §4.3 pass 3).
type DottedIdent struct {
	Parts   []string
	SrcSpan value.Span
}

func (d *DottedIdent) Span() value.Span { return d.SrcSpan }
func (d *DottedIdent) exprNode()        {}

// TypeExpr is the grammar used in input/output type annotations, sharing
// shape with schema.AttributeType but expressed as unresolved syntax
// (e.g. `ref(aws.vpc)` is parsed here, then turned into schema.Ref(...)
// once the resolver knows the referenced resource type exists).
type TypeExpr struct {
	Name    string      // String, Int, Bool, List, Map, Object, CidrBlock, Ref, Enum, Custom
	Args    []TypeExpr  // element type for List/Map, field types for Object
	Fields  []string    // field names for Object, parallel to Args
	Values  []string    // enum values for Enum
	RefType string      // resource type name for Ref
	SrcSpan value.Span
}

func (t TypeExpr) Span() value.Span { return t.SrcSpan }
