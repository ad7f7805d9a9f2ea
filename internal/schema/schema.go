// Package schema implements the attribute type grammar and the
// validate/diff_attrs/coerce operations that drive resource validation and
// replace-vs-update planning decisions.
package schema

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/carina-lang/carina/internal/value"
)

// AttributeType is the closed grammar of attribute shapes:
// String | Int | Bool | Enum(values) | List(AttributeType) | Map(AttributeType)
// | Object(field->AttributeType) | CidrBlock | Ref(resource-type) | Custom(validator-id).
type AttributeType interface {
	TypeName() string
	validate(v value.Value) error
}

type stringType struct{}

func String() AttributeType        { return stringType{} }
func (stringType) TypeName() string { return "String" }
func (stringType) validate(v value.Value) error {
	switch v.(type) {
	case value.String, value.Reference:
		return nil
	default:
		return &TypeMismatchError{Expected: "String", Got: v.Kind()}
	}
}

type intType struct{}

func Int() AttributeType        { return intType{} }
func (intType) TypeName() string { return "Int" }
func (intType) validate(v value.Value) error {
	switch v.(type) {
	case value.Int, value.Reference:
		return nil
	default:
		return &TypeMismatchError{Expected: "Int", Got: v.Kind()}
	}
}

type boolType struct{}

func Bool() AttributeType        { return boolType{} }
func (boolType) TypeName() string { return "Bool" }
func (boolType) validate(v value.Value) error {
	switch v.(type) {
	case value.Bool, value.Reference:
		return nil
	default:
		return &TypeMismatchError{Expected: "Bool", Got: v.Kind()}
	}
}

// Enum accepts bare values and dotted namespaced forms (TypeName.value or
// ns1.ns2.TypeName.value); both are stripped to the trailing segment and
// matched case-sensitively against Values.
type enumType struct{ values []string }

func Enum(values ...string) AttributeType { return enumType{values: values} }
func (e enumType) TypeName() string        { return "Enum(" + strings.Join(e.values, "|") + ")" }
func (e enumType) validate(v value.Value) error {
	s, ok := v.(value.String)
	if !ok {
		if _, ok := v.(value.Reference); ok {
			return nil
		}
		return &TypeMismatchError{Expected: e.TypeName(), Got: v.Kind()}
	}
	bare := bareEnumValue(string(s))
	for _, allowed := range e.values {
		if bare == allowed || string(s) == allowed {
			return nil
		}
	}
	return &InvalidEnumVariantError{Value: string(s), Expected: e.values}
}

// bareEnumValue strips a dotted namespace prefix down to the trailing segment.
func bareEnumValue(s string) string {
	idx := strings.LastIndex(s, ".")
	if idx < 0 {
		return s
	}
	return s[idx+1:]
}

// NormalizeEnum strips a namespaced enum form to its bare trailing segment,
// the form persisted into state (spec.md §9 recommends normalization).
func NormalizeEnum(s string) string { return bareEnumValue(s) }

type listType struct{ elem AttributeType }

func List(elem AttributeType) AttributeType { return listType{elem: elem} }
func (l listType) TypeName() string          { return "List<" + l.elem.TypeName() + ">" }
func (l listType) validate(v value.Value) error {
	items, ok := v.(value.List)
	if !ok {
		if _, ok := v.(value.Reference); ok {
			return nil
		}
		return &TypeMismatchError{Expected: l.TypeName(), Got: v.Kind()}
	}
	for i, item := range items {
		if err := l.elem.validate(item); err != nil {
			return &ListItemError{Index: i, Inner: err}
		}
	}
	return nil
}

type mapType struct{ elem AttributeType }

func Map(elem AttributeType) AttributeType { return mapType{elem: elem} }
func (m mapType) TypeName() string          { return "Map<" + m.elem.TypeName() + ">" }
func (m mapType) validate(v value.Value) error {
	mv, ok := v.(value.Map)
	if !ok {
		if _, ok := v.(value.Reference); ok {
			return nil
		}
		return &TypeMismatchError{Expected: m.TypeName(), Got: v.Kind()}
	}
	for _, k := range mv.SortedKeys() {
		if err := m.elem.validate(mv[k]); err != nil {
			return &MapValueError{Key: k, Inner: err}
		}
	}
	return nil
}

// Object validates a Map's fields against a fixed field->type schema.
type objectType struct {
	name   string
	fields map[string]AttributeType
}

func Object(name string, fields map[string]AttributeType) AttributeType {
	return objectType{name: name, fields: fields}
}
func (o objectType) TypeName() string { return "Object(" + o.name + ")" }
func (o objectType) validate(v value.Value) error {
	mv, ok := v.(value.Map)
	if !ok {
		if _, ok := v.(value.Reference); ok {
			return nil
		}
		return &TypeMismatchError{Expected: o.TypeName(), Got: v.Kind()}
	}
	for _, k := range mv.SortedKeys() {
		ft, ok := o.fields[k]
		if !ok {
			return &UnknownAttributeError{Name: k}
		}
		if err := ft.validate(mv[k]); err != nil {
			return &MapValueError{Key: k, Inner: err}
		}
	}
	return nil
}

// CidrBlock validates syntactic CIDR form using net.ParseCIDR.
type cidrType struct{}

func CidrBlock() AttributeType        { return cidrType{} }
func (cidrType) TypeName() string { return "CidrBlock" }
func (cidrType) validate(v value.Value) error {
	s, ok := v.(value.String)
	if !ok {
		if _, ok := v.(value.Reference); ok {
			return nil
		}
		return &TypeMismatchError{Expected: "CidrBlock", Got: v.Kind()}
	}
	if err := validateCIDR(string(s)); err != nil {
		return &ValidationFailedError{Message: err.Error()}
	}
	return nil
}

func validateCIDR(s string) error {
	_, _, err := net.ParseCIDR(s)
	if err != nil {
		return fmt.Errorf("invalid CIDR %q: %w", s, err)
	}
	// net.ParseCIDR accepts an IP that isn't the network base address; the
	// DSL's literal must be exactly the network address, matching the
	// original implementation's stricter octet/prefix validation.
	ip, network, _ := net.ParseCIDR(s)
	if !network.IP.Equal(ip) {
		return fmt.Errorf("invalid CIDR %q: host bits set, expected network address %s", s, network.String())
	}
	return nil
}

// Ref accepts a Reference (unresolved) or a String (post-resolution
// provider ID). The resource type appears only in TypeName; nothing checks
// that the referent is actually of that type.
type refType struct{ resourceType string }

func Ref(resourceType string) AttributeType { return refType{resourceType: resourceType} }
func (r refType) TypeName() string          { return "Ref(" + r.resourceType + ")" }
func (r refType) validate(v value.Value) error {
	switch v.(type) {
	case value.Reference, value.String:
		return nil
	default:
		return &TypeMismatchError{Expected: r.TypeName(), Got: v.Kind()}
	}
}

// Custom wraps a named validator function, identified by validator-id for
// error messages, e.g. "PositiveInt".
type CustomValidator func(value.Value) error

type customType struct {
	name string
	fn   CustomValidator
}

func Custom(name string, fn CustomValidator) AttributeType {
	return customType{name: name, fn: fn}
}
func (c customType) TypeName() string { return c.name }
func (c customType) validate(v value.Value) error {
	if err := c.fn(v); err != nil {
		return &ValidationFailedError{Message: err.Error()}
	}
	return nil
}

// PositiveInt is a worked Custom type, grounded on schema.rs's types::positive_int.
func PositiveInt() AttributeType {
	return Custom("PositiveInt", func(v value.Value) error {
		i, ok := v.(value.Int)
		if !ok {
			return fmt.Errorf("expected integer")
		}
		if i <= 0 {
			return fmt.Errorf("value must be positive")
		}
		return nil
	})
}

// TypeMismatchError reports a value whose runtime kind doesn't match its
// declared attribute type.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Got)
}

// InvalidEnumVariantError reports an enum value outside its declared set.
type InvalidEnumVariantError struct {
	Value    string
	Expected []string
}

func (e *InvalidEnumVariantError) Error() string {
	return fmt.Sprintf("invalid enum value %q, expected one of %s", e.Value, strings.Join(e.Expected, ", "))
}

// ListItemError wraps a validation failure at a specific list index.
type ListItemError struct {
	Index int
	Inner error
}

func (e *ListItemError) Error() string { return fmt.Sprintf("item %d: %s", e.Index, e.Inner) }
func (e *ListItemError) Unwrap() error { return e.Inner }

// MapValueError wraps a validation failure at a specific map/object key.
type MapValueError struct {
	Key   string
	Inner error
}

func (e *MapValueError) Error() string { return fmt.Sprintf("key %q: %s", e.Key, e.Inner) }
func (e *MapValueError) Unwrap() error { return e.Inner }

// UnknownAttributeError reports an object field with no matching schema entry.
type UnknownAttributeError struct {
	Name string
}

func (e *UnknownAttributeError) Error() string { return fmt.Sprintf("unknown attribute %q", e.Name) }

// ValidationFailedError wraps a CidrBlock/Custom validator's failure message.
type ValidationFailedError struct {
	Message string
}

func (e *ValidationFailedError) Error() string { return e.Message }

// AttributeSchema is the per-attribute metadata driving validation and
// replace-vs-update planning.
type AttributeSchema struct {
	Type       AttributeType
	Required   bool
	Immutable  bool
	Computed   bool
	Default    value.Value
	ProviderName string
}

// ResourceSchema maps attribute names to their schema within one resource type.
type ResourceSchema struct {
	TypeName   string
	Attributes map[string]AttributeSchema
}

func NewResourceSchema(typeName string) *ResourceSchema {
	return &ResourceSchema{TypeName: typeName, Attributes: map[string]AttributeSchema{}}
}

func (s *ResourceSchema) WithAttribute(name string, attr AttributeSchema) *ResourceSchema {
	s.Attributes[name] = attr
	return s
}

// Diagnostic carries a validation error together with source span metadata.
type Diagnostic struct {
	Message string
	Span    value.Span
}

func (d Diagnostic) Error() string {
	if d.Span.Line == 0 {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Span.String(), d.Message)
}

// Validate checks unknown keys (reject), required keys present, and that
// each value matches its attribute type. It never panics; all failures are
// returned as a diagnostic batch.
func Validate(attrs value.Map, spans map[string]value.Span, s *ResourceSchema) []Diagnostic {
	var diags []Diagnostic

	for name, attrSchema := range s.Attributes {
		_, present := attrs[name]
		if attrSchema.Required && !present && attrSchema.Default == nil {
			diags = append(diags, Diagnostic{Message: fmt.Sprintf("required attribute %q is missing", name)})
		}
	}

	for _, name := range attrs.SortedKeys() {
		v := attrs[name]
		attrSchema, ok := s.Attributes[name]
		if !ok {
			diags = append(diags, Diagnostic{
				Message: fmt.Sprintf("unknown attribute %q for resource type %q", name, s.TypeName),
				Span:    spans[name],
			})
			continue
		}
		if err := attrSchema.Type.validate(v); err != nil {
			diags = append(diags, Diagnostic{Message: err.Error(), Span: spans[name]})
		}
	}

	sort.Slice(diags, func(i, j int) bool { return diags[i].Message < diags[j].Message })
	return diags
}

// DiffResult classifies attribute-level changes between two attribute maps.
type DiffResult struct {
	Unchanged        []string
	InPlaceChanges   []string
	ImmutableChanges []string
}

// HasImmutableChange reports whether any changed attribute forces a replace.
func (d DiffResult) HasImmutableChange() bool { return len(d.ImmutableChanges) > 0 }

// HasChange reports whether any attribute changed at all.
func (d DiffResult) HasChange() bool { return len(d.InPlaceChanges) > 0 || len(d.ImmutableChanges) > 0 }

// DiffAttrs walks before/after attribute-by-attribute. computed attributes
// are skipped: they appear in none of the result lists and never drive
// changes. A
// change to an attribute whose schema has Immutable=true is recorded as an
// immutable change (forces Replace); all other changes are in-place.
func DiffAttrs(before, after value.Map, s *ResourceSchema) DiffResult {
	var out DiffResult

	names := map[string]struct{}{}
	for k := range before {
		names[k] = struct{}{}
	}
	for k := range after {
		names[k] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		attrSchema, known := s.Attributes[name]
		if known && attrSchema.Computed {
			continue
		}
		bv, bok := before[name]
		av, aok := after[name]
		switch {
		case bok && aok && bv.Equal(av):
			out.Unchanged = append(out.Unchanged, name)
		case bok && aok && !bv.Equal(av), bok != aok:
			if known && attrSchema.Immutable {
				out.ImmutableChanges = append(out.ImmutableChanges, name)
			} else {
				out.InPlaceChanges = append(out.InPlaceChanges, name)
			}
		}
	}
	return out
}

// regionCanonicalForm maps enum-form region identifiers like
// "aws.Region.ap_northeast_1" to their canonical provider form
// "ap-northeast-1", matching spec.md §4.1's worked example.
func regionCanonicalForm(s string) (string, bool) {
	const marker = "Region."
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", false
	}
	tail := s[idx+len(marker):]
	return strings.ReplaceAll(tail, "_", "-"), true
}

// Coerce normalizes literals to canonical provider form. Integer<->String
// coercion is never permitted; CIDR literals are validated but not rewritten.
func Coerce(v value.Value, t AttributeType) (value.Value, error) {
	switch tt := t.(type) {
	case enumType:
		s, ok := v.(value.String)
		if !ok {
			return v, nil
		}
		if canon, ok := regionCanonicalForm(string(s)); ok {
			return value.String(canon), nil
		}
		return value.String(NormalizeEnum(string(s))), nil
	case cidrType:
		if err := tt.validate(v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		if _, isInt := v.(value.Int); isInt {
			if _, wantString := t.(stringType); wantString {
				return nil, fmt.Errorf("cannot coerce Int to String")
			}
		}
		if _, isString := v.(value.String); isString {
			if _, wantInt := t.(intType); wantInt {
				return nil, fmt.Errorf("cannot coerce String to Int")
			}
		}
		return v, nil
	}
}

// ParseInt parses an integer literal in the accepted grammar (decimal
// only, per spec.md §6) into an int64.
func ParseInt(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
