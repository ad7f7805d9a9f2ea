// Package resolver implements the module loader, scope binder, reference
// resolver and module-expansion passes of spec.md §4.3: it turns a parsed
// ast.File into a flat, namespaced []*ir.Resource with every
// locally-resolvable Reference substituted inline.
//
// Grounded on original_source/carina-core/src/module_resolver.rs's pass
// structure (load modules, bind names, resolve references, expand module
// calls, wire outputs, build dependency graph), re-expressed without a
// promise/closure model per spec.md §9 ("module scoping by namespacing,
// not closures").
package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/carina-lang/carina/internal/ast"
	"github.com/carina-lang/carina/internal/diag"
	"github.com/carina-lang/carina/internal/ir"
	"github.com/carina-lang/carina/internal/parser"
	"github.com/carina-lang/carina/internal/schema"
	"github.com/carina-lang/carina/internal/value"
)

// moduleDef is a loaded (but not yet instantiated) module: its declared
// inputs/outputs and the body statements to clone into each caller scope.
type moduleDef struct {
	path    string
	dir     string
	inputs  []ast.InputParam
	outputs []ast.OutputParam
	body    []ast.Statement
}

// Resolver owns the module load cache and the resource-type schema
// registry needed to tell computed from non-computed attributes during
// reference resolution.
type Resolver struct {
	schemas map[string]*schema.ResourceSchema

	moduleCache map[string]*moduleDef
	loadStack   []string // canonical paths currently being loaded, for cycle detection

	// expanded accumulates resources produced by module instances as they
	// are expanded (registerBindings may recurse into expandModuleCall
	// arbitrarily deep before the root scope's own resolveAll runs).
	expanded []*ir.Resource

	anonModuleCount map[string]int
}

func New(schemas map[string]*schema.ResourceSchema) *Resolver {
	return &Resolver{schemas: schemas, moduleCache: map[string]*moduleDef{}, anonModuleCount: map[string]int{}}
}

// Result is everything the resolver produces from one root file: the flat
// resource set (fully namespaced, attrs resolved where locally possible),
// the root backend/provider config statements (only meaningful at the
// root, never inside a module). Failures are returned as Resolve's error,
// not carried here.
type Result struct {
	Resources []*ir.Resource
	Backend   *ast.Backend
	Providers []*ast.Provider
}

// scope is the name-binding environment for one file/module instance. It
// never nests lexically -- a module instance's scope contains only its own
// let bindings plus its substituted inputs, per spec.md §9.
type scope struct {
	bindings map[string]*bindingEntry
	imports  map[string]*moduleDef
	inputs   map[string]inputBinding // only populated inside a module instance
}

// inputBinding is a module argument's resolved value plus every dependency
// key it carries (the caller-side resolveExpr already determined both
// when the ModuleCall's Args were resolved).
type inputBinding struct {
	value value.Value
	depOn []ir.ResourceKey
}

type bindingEntry struct {
	namespacePath []string
	qualifiedType string // "" for module bindings
	literal       []ast.AttrAssign
	resource      *ir.Resource // filled once resolved
	moduleOutputs map[string]value.Value

	resolving bool
	resolved  bool
}

func newScope() *scope {
	return &scope{bindings: map[string]*bindingEntry{}, imports: map[string]*moduleDef{}}
}

// Resolve processes the root file rooted at dir.
func (r *Resolver) Resolve(file *ast.File, dir string) (*Result, error) {
	s := newScope()

	var backend *ast.Backend
	var providers []*ast.Provider

	for _, stmt := range file.Statements {
		switch t := stmt.(type) {
		case *ast.Import:
			mod, err := r.loadModule(t.Path, dir, t.SrcSpan)
			if err != nil {
				return nil, err
			}
			s.imports[t.Alias] = mod
		case *ast.Backend:
			backend = t
		case *ast.Provider:
			providers = append(providers, t)
		case *ast.InputBlock, *ast.OutputBlock:
			return nil, &diag.ResolveError{Kind: "invalid_input_type", Message: "input/output blocks are only valid inside an imported module file, not the root configuration", Span: stmt.Span()}
		}
	}

	if err := r.registerBindings(s, file.Statements, nil); err != nil {
		return nil, err
	}

	resources, err := r.resolveAll(s, append([]*ir.Resource{}, r.expanded...))
	if err != nil {
		return nil, err
	}

	return &Result{Resources: resources, Backend: backend, Providers: providers}, nil
}

// registerBindings walks statements once, creating a placeholder
// bindingEntry for every let-bound or bare resource/module, without
// resolving any attribute expressions yet. This lets later statements
// refer to earlier OR later bindings; actual attribute resolution is
// demand-driven (resolveAll / resolveBindingResource), matching how a
// reference's target need not have been declared first in source order.
func (r *Resolver) registerBindings(s *scope, statements []ast.Statement, namespacePath []string) error {
	for _, stmt := range statements {
		switch t := stmt.(type) {
		case *ast.Let:
			switch v := t.Value.(type) {
			case *ast.ResourceLiteral:
				s.bindings[t.Name] = &bindingEntry{namespacePath: namespacePath, qualifiedType: v.QualifiedType, literal: v.Attrs}
			case *ast.ModuleCall:
				// Module instances are expanded eagerly here (not lazily)
				// since their resource set must be registered under a
				// synthetic namespace regardless of whether anything
				// references their outputs.
				outputs, err := r.expandModuleCall(s, v, namespacePath, t.Name)
				if err != nil {
					return err
				}
				s.bindings[t.Name] = &bindingEntry{moduleOutputs: outputs, resolved: true}
			}
		case *ast.ResourceLiteral:
			name := anonymousLocalName(t)
			key := t.QualifiedType + "." + name
			s.bindings[key] = &bindingEntry{namespacePath: namespacePath, qualifiedType: t.QualifiedType, literal: t.Attrs}
		case *ast.ModuleCall:
			r.anonModuleCount[t.Alias]++
			instanceName := fmt.Sprintf("_%s_%d", t.Alias, r.anonModuleCount[t.Alias])
			if _, err := r.expandModuleCall(s, t, namespacePath, instanceName); err != nil {
				return err
			}
		}
	}
	return nil
}

// anonymousLocalName derives the local name an unbound resource literal
// is registered under, from its "name" attribute's literal string value
// (spec.md §4.3 pass 2). Resources without a "name" attribute fall back to
// a positional placeholder; the schema validator will usually reject them
// anyway since most resource types require "name".
func anonymousLocalName(r *ast.ResourceLiteral) string {
	for _, a := range r.Attrs {
		if a.Name == "name" {
			if lit, ok := a.Value.(*ast.StringLit); ok {
				return lit.Value
			}
		}
	}
	return fmt.Sprintf("anon_%d", r.SrcSpan.Offset)
}

// resolveAll resolves every resource binding's attrs and returns the flat
// set, skipping module-output-only bindings (their resources were already
// collected during expandModuleCall and threaded through collected).
func (r *Resolver) resolveAll(s *scope, collected []*ir.Resource) ([]*ir.Resource, error) {
	for name, entry := range s.bindings {
		if entry.moduleOutputs != nil {
			continue // module instance: its resources were appended by expandModuleCall already
		}
		res, err := r.resolveBindingResource(s, name, entry)
		if err != nil {
			return nil, err
		}
		collected = append(collected, res)
	}
	return collected, nil
}

// resolveBindingResource lazily resolves one binding's attrs into an
// ir.Resource, memoizing the result and detecting resolution cycles
// (a reference cycle among non-computed attributes, which the later
// dependency-graph cycle check would also catch, but failing fast here
// gives a clearer diagnostic naming the specific binding).
func (r *Resolver) resolveBindingResource(s *scope, name string, entry *bindingEntry) (*ir.Resource, error) {
	if entry.resolved {
		return entry.resource, nil
	}
	if entry.resolving {
		return nil, &diag.ResolveError{Kind: "unresolved_reference", Message: fmt.Sprintf("reference cycle detected while resolving %q", name)}
	}
	entry.resolving = true

	localName := name
	if dot := strings.LastIndex(name, "."); dot >= 0 && name[:dot] == entry.qualifiedType {
		localName = name[dot+1:]
	}

	res := &ir.Resource{
		QualifiedType: entry.qualifiedType,
		LocalName:     localName,
		NamespacePath: entry.namespacePath,
	}
	entry.resource = res

	attrs := value.Map{}
	for _, a := range entry.literal {
		v, refs, err := r.resolveExpr(s, a.Value)
		if err != nil {
			return nil, err
		}
		attrs[a.Name] = v
		for _, key := range refs {
			res.AddDependency(key)
		}
		// resolveExpr already walks every nested expression and reports
		// every reference it resolved, but CollectReferences double-checks
		// against the substituted value itself -- e.g. a computed
		// attribute carried through a module output ends up as a
		// value.Reference with no corresponding refs entry above.
		for _, ref := range value.CollectReferences(v) {
			key, err := ir.ParseResourceKey(ref.Target)
			if err != nil {
				return nil, fmt.Errorf("resolver: malformed reference target %q: %w", ref.Target, err)
			}
			res.AddDependency(key)
		}
	}
	res.Attrs = attrs

	entry.resolving = false
	entry.resolved = true
	return res, nil
}

// resolveExpr converts one ast.Expr into a value.Value, substituting
// DottedIdent references where the first segment names a binding in
// scope. The second return value names every referent key found anywhere
// in e -- not just the last one seen -- so a list or object literal
// holding several references (e.g. security_group_ids = [sg1.id, sg2.id])
// records a dependency edge to each of them, even when a referenced
// attribute is computed and no literal value could be substituted.
func (r *Resolver) resolveExpr(s *scope, e ast.Expr) (value.Value, []ir.ResourceKey, error) {
	switch t := e.(type) {
	case *ast.StringLit:
		return value.String(t.Value), nil, nil
	case *ast.IntLit:
		return value.Int(t.Value), nil, nil
	case *ast.BoolLit:
		return value.Bool(t.Value), nil, nil
	case *ast.ListLit:
		items := make(value.List, len(t.Items))
		var refs []ir.ResourceKey
		for i, item := range t.Items {
			v, itemRefs, err := r.resolveExpr(s, item)
			if err != nil {
				return nil, nil, err
			}
			items[i] = v
			refs = append(refs, itemRefs...)
		}
		return items, refs, nil
	case *ast.ObjectLit:
		m := value.Map{}
		var refs []ir.ResourceKey
		for _, a := range t.Attrs {
			v, attrRefs, err := r.resolveExpr(s, a.Value)
			if err != nil {
				return nil, nil, err
			}
			m[a.Name] = v
			refs = append(refs, attrRefs...)
		}
		return m, refs, nil
	case *ast.DottedIdent:
		return r.resolveDottedIdent(s, t)
	default:
		return nil, nil, fmt.Errorf("resolver: unhandled expression type %T", e)
	}
}

// resolveDottedIdent implements spec.md §4.3 pass 3: if the leading
// segment is bound in scope, this is a symbolic Reference (to a resource
// attribute or a module output); otherwise it is a namespaced enum
// literal, left as a String for the schema layer to validate/normalize.
func (r *Resolver) resolveDottedIdent(s *scope, d *ast.DottedIdent) (value.Value, []ir.ResourceKey, error) {
	if len(d.Parts) >= 2 && d.Parts[0] == "input" {
		name := strings.Join(d.Parts[1:], ".")
		ib, ok := s.inputs[name]
		if !ok {
			return nil, nil, &diag.ResolveError{Kind: "unresolved_reference", Message: fmt.Sprintf("input %q is not in scope here", name), Span: d.SrcSpan}
		}
		return ib.value, ib.depOn, nil
	}

	head := d.Parts[0]
	entry, bound := s.bindings[head]
	if !bound {
		// Not a binding: treat the whole dotted path as a namespaced enum
		// literal, e.g. "aws.Region.us_east_1".
		return value.String(strings.Join(d.Parts, ".")), nil, nil
	}

	if entry.moduleOutputs != nil {
		if len(d.Parts) != 2 {
			return nil, nil, &diag.ResolveError{Kind: "unresolved_reference", Message: fmt.Sprintf("module reference %q must be <instance>.<output>", strings.Join(d.Parts, ".")), Span: d.SrcSpan}
		}
		v, ok := entry.moduleOutputs[d.Parts[1]]
		if !ok {
			return nil, nil, &diag.ResolveError{Kind: "unresolved_reference", Message: fmt.Sprintf("module %q has no output %q", head, d.Parts[1]), Span: d.SrcSpan}
		}
		return v, nil, nil
	}

	if len(d.Parts) != 2 {
		return nil, nil, &diag.ResolveError{Kind: "unresolved_reference", Message: fmt.Sprintf("reference %q must be <binding>.<attribute>", strings.Join(d.Parts, ".")), Span: d.SrcSpan}
	}
	attrName := d.Parts[1]

	resSchema := r.schemas[entry.qualifiedType]
	computed := attrName == "id" // always computed even for unknown schemas
	if resSchema != nil {
		if as, ok := resSchema.Attributes[attrName]; ok {
			computed = as.Computed
		}
	}

	if computed {
		target, err := r.resolveBindingResource(s, head, entry)
		if err != nil {
			return nil, nil, err
		}
		key := target.Key()
		return value.Reference{Binding: head, Attribute: attrName, Target: key.String(), Span: d.SrcSpan}, []ir.ResourceKey{key}, nil
	}

	target, err := r.resolveBindingResource(s, head, entry)
	if err != nil {
		return nil, nil, err
	}
	v, ok := target.Attrs[attrName]
	if !ok {
		return nil, nil, &diag.ResolveError{Kind: "unresolved_reference", Message: fmt.Sprintf("%q has no attribute %q", head, attrName), Span: d.SrcSpan}
	}
	key := target.Key()
	return v, []ir.ResourceKey{key}, nil
}

// expandModuleCall resolves a module invocation's arguments in the
// caller's scope, validates them against the module's declared inputs
// (spec.md §4.3 pass 4), builds a fresh instance scope namespaced under
// instanceName, resolves every resource the module body declares into
// that namespace, and evaluates the module's own OutputBlock expressions
// against the instance scope to produce the value the caller binds.
func (r *Resolver) expandModuleCall(caller *scope, call *ast.ModuleCall, callerNamespace []string, instanceName string) (map[string]value.Value, error) {
	mod, ok := caller.imports[call.Alias]
	if !ok {
		return nil, diag.UnknownModule(call.Alias, call.SrcSpan)
	}

	given := map[string]ast.AttrAssign{}
	for _, a := range call.Args {
		given[a.Name] = a
	}

	inputs := map[string]inputBinding{}
	for _, decl := range mod.inputs {
		a, present := given[decl.Name]
		if !present {
			if decl.Default != nil {
				v, ref, err := r.resolveExpr(caller, decl.Default)
				if err != nil {
					return nil, err
				}
				inputs[decl.Name] = inputBinding{value: v, depOn: ref}
				continue
			}
			return nil, diag.MissingInput(call.Alias, decl.Name, call.SrcSpan)
		}
		v, ref, err := r.resolveExpr(caller, a.Value)
		if err != nil {
			return nil, err
		}
		inputs[decl.Name] = inputBinding{value: v, depOn: ref}
		delete(given, decl.Name)
	}
	for name, a := range given {
		return nil, diag.UnexpectedInput(call.Alias, name, a.SrcSpan)
	}

	instanceNamespace := append(append([]string{}, callerNamespace...), instanceName)

	instance := newScope()
	instance.inputs = inputs

	var body []ast.Statement
	for _, stmt := range mod.body {
		switch t := stmt.(type) {
		case *ast.Import:
			nested, err := r.loadModule(t.Path, mod.dir, t.SrcSpan)
			if err != nil {
				return nil, err
			}
			instance.imports[t.Alias] = nested
		default:
			body = append(body, t)
		}
	}

	if err := r.registerBindings(instance, body, instanceNamespace); err != nil {
		return nil, err
	}
	resources, err := r.resolveAll(instance, nil)
	if err != nil {
		return nil, err
	}
	r.expanded = append(r.expanded, resources...)

	outputs := map[string]value.Value{}
	for _, out := range mod.outputs {
		v, _, err := r.resolveExpr(instance, out.Value)
		if err != nil {
			return nil, err
		}
		outputs[out.Name] = v
	}
	return outputs, nil
}

// loadModule parses and caches the module file named by path relative to
// dir. A directory import resolves to "main.crn" inside it (spec.md §4.3
// pass 1, the singular-file convention SPEC_FULL.md §3 documents as an
// intentional divergence from the original's merge-all-files behavior).
func (r *Resolver) loadModule(importPath, dir string, span value.Span) (*moduleDef, error) {
	target := importPath
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, importPath)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, diag.ModuleNotFound(importPath, span)
	}
	if info.IsDir() {
		target = filepath.Join(target, "main.crn")
	}

	canonical, err := filepath.Abs(target)
	if err != nil {
		return nil, diag.IOError(importPath, err, span)
	}

	if cached, ok := r.moduleCache[canonical]; ok {
		return cached, nil
	}
	for _, inProgress := range r.loadStack {
		if inProgress == canonical {
			return nil, diag.CircularImport(append(append([]string{}, r.loadStack...), canonical), span)
		}
	}

	src, err := os.ReadFile(canonical)
	if err != nil {
		return nil, diag.IOError(canonical, err, span)
	}

	r.loadStack = append(r.loadStack, canonical)
	defer func() { r.loadStack = r.loadStack[:len(r.loadStack)-1] }()

	file, parseErrs := parser.Parse(canonical, string(src))
	if len(parseErrs) > 0 {
		return nil, &diag.ParseError{Message: parseErrs[0].Message, Span: parseErrs[0].Span}
	}

	mod := &moduleDef{path: canonical, dir: filepath.Dir(canonical)}
	for _, stmt := range file.Statements {
		switch t := stmt.(type) {
		case *ast.InputBlock:
			mod.inputs = t.Params
		case *ast.OutputBlock:
			mod.outputs = t.Params
		case *ast.Import:
			nested, err := r.loadModule(t.Path, mod.dir, t.SrcSpan)
			if err != nil {
				return nil, err
			}
			_ = nested // registered in r.moduleCache; re-imported by the instance's own scope at expansion time
			mod.body = append(mod.body, t)
		default:
			mod.body = append(mod.body, stmt)
		}
	}

	r.moduleCache[canonical] = mod
	return mod, nil
}
