// Package plan implements the differ and planner of spec.md §4.5: given a
// resolver's desired []*ir.Resource and the last-applied ir.StateDocument,
// it classifies every resource into a Create/Read/Update/Delete/Replace
// Effect and orders them with internal/graph so dependencies always run
// before dependents.
//
// Grounded on original_source/carina-core/src/{differ.rs,plan.rs}.
package plan

import (
	"context"
	"fmt"
	"sort"

	"github.com/carina-lang/carina/internal/diag"
	"github.com/carina-lang/carina/internal/graph"
	"github.com/carina-lang/carina/internal/ir"
	"github.com/carina-lang/carina/internal/provider"
	"github.com/carina-lang/carina/internal/schema"
	"github.com/carina-lang/carina/internal/value"
)

// Effect names what the interpreter must do to reconcile one resource.
type Effect string

const (
	Create  Effect = "create"
	Read    Effect = "read"
	Update  Effect = "update"
	Delete  Effect = "delete"
	Replace Effect = "replace"
	NoOp    Effect = "no-op"
)

// Change is one planned resource action.
type Change struct {
	Key    ir.ResourceKey
	Effect Effect
	Before value.Map // nil for Create
	After  value.Map // nil for Delete

	// DependsOn is the resource's dependency edge set, carried from the
	// ir.Resource the resolver produced (or, for a Delete with no desired
	// counterpart, from the ir.State apply last persisted). The
	// interpreter writes this straight into the ir.State it saves, so a
	// later destroy still has real edges to order by.
	DependsOn map[ir.ResourceKey]struct{}

	// ReplaceReason names the immutable attribute(s) that forced a
	// Replace, for plan-output readability.
	ReplaceReason []string

	// Origin is where this change's resource lives in the module tree,
	// per SPEC_FULL.md §3's ModularPlan: derived from Key.NamespacePath,
	// not user-supplied. Display-only -- it never affects ordering or
	// classification, only how `carina plan` groups its output.
	Origin ModuleSource
}

// ModuleSource names a change's place in the module tree: either the root
// file, or a specific module instance (the namespace path the resolver
// assigned when it expanded that `module_call { ... }`).
type ModuleSource struct {
	Root     bool
	Instance []string // e.g. ["network", "prod"] for a nested module call
}

func (m ModuleSource) String() string {
	if m.Root {
		return "(root)"
	}
	return "module " + joinPath(m.Instance)
}

func joinPath(path []string) string {
	out := ""
	for i, seg := range path {
		if i > 0 {
			out += "/"
		}
		out += seg
	}
	return out
}

func moduleSourceFor(key ir.ResourceKey) ModuleSource {
	if key.NamespacePath == "" {
		return ModuleSource{Root: true}
	}
	return ModuleSource{Instance: key.Segments()}
}

// GroupByModule partitions changes by their Origin, in first-seen order,
// the way the original's `ModularPlan::group_by_module` lays out a plan
// for display. The root group (if any) always comes first.
func GroupByModule(changes []Change) []ModuleGroup {
	var groups []ModuleGroup
	index := map[string]int{}
	for _, c := range changes {
		key := c.Origin.String()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, ModuleGroup{Source: c.Origin})
		}
		groups[i].Changes = append(groups[i].Changes, c)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Source.Root && !groups[j].Source.Root })
	return groups
}

// ModuleGroup is one module instance's slice of a Plan's changes.
type ModuleGroup struct {
	Source  ModuleSource
	Changes []Change
}

// Summary tallies change counts the way `carina plan`'s final line does:
// "N to add, M to change, K to destroy, R to replace".
type Summary struct {
	Add, Change, Destroy, Replace int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d to add, %d to change, %d to destroy, %d to replace", s.Add, s.Change, s.Destroy, s.Replace)
}

// Plan is the ordered set of Changes plus the summary, ready for
// interpretation in order.
type Plan struct {
	Changes []Change
	Summary Summary
}

// Source selects which resources Build plans: with Root set, every
// resource; otherwise only resources whose namespace path starts with
// Module are diffed and ordered. The CLI's plan and apply commands always
// pass Root.
type Source struct {
	Root   bool
	Module []string // namespace path, when Root is false
}

// Registry resolves a resource's schema for Diff/Coerce purposes and
// performs the live drift-read spec.md §4.5 step 4's "Refresh policy"
// names: before diffing a resource that already has prior state, Build
// reads the provider's current view of it so plan/apply react to changes
// made outside carina, not just to what was last persisted. The
// provider package's Registry -- the only real implementation -- already
// exposes both Lookup and Read, so no separate reader type is needed.
type Registry interface {
	Lookup(qualifiedType string) (*schema.ResourceSchema, bool)
	Read(ctx context.Context, qualifiedType, providerID string) (provider.Observation, error)
}

// Build implements spec.md §4.5: classify every desired resource against
// a live drift-read of state (Refresh policy: open question #2 decides
// "always read", matching the teacher's plan/apply always calling
// CreatePlan before any mutation), emit Delete for every state resource
// missing from desired (skipping ones the provider reports already gone),
// then order the whole change set so Creates/Updates run before their
// dependents and Deletes run in reverse dependency order.
func Build(ctx context.Context, desired []*ir.Resource, state *ir.StateDocument, reg Registry, src Source) (*Plan, error) {
	desiredByKey := make(map[ir.ResourceKey]*ir.Resource, len(desired))
	for _, r := range desired {
		if !inScope(r.Key(), src) {
			continue
		}
		desiredByKey[r.Key()] = r
	}

	var changes []Change
	seen := map[ir.ResourceKey]struct{}{}

	for key, res := range desiredByKey {
		seen[key] = struct{}{}
		sch, _ := reg.Lookup(res.QualifiedType)

		origin := moduleSourceFor(key)

		existing, found := state.Resources[key]
		if !found {
			changes = append(changes, Change{Key: key, Effect: Create, After: res.Attrs, DependsOn: res.DependsOn, Origin: origin})
			continue
		}

		before, err := refresh(ctx, reg, key, existing)
		if err != nil {
			return nil, err
		}
		if before == nil {
			// The provider no longer has this resource: treat it the same
			// as if state never knew about it.
			changes = append(changes, Change{Key: key, Effect: Create, After: res.Attrs, DependsOn: res.DependsOn, Origin: origin})
			continue
		}

		diffResult, err := diffAttrs(before, res.Attrs, sch)
		if err != nil {
			return nil, &diag.PlanError{Message: fmt.Sprintf("diffing %s: %v", key, err)}
		}

		switch {
		case len(diffResult.ImmutableChanges) > 0:
			changes = append(changes, Change{Key: key, Effect: Replace, Before: before, After: res.Attrs, DependsOn: res.DependsOn, ReplaceReason: diffResult.ImmutableChanges, Origin: origin})
		case len(diffResult.InPlaceChanges) > 0:
			changes = append(changes, Change{Key: key, Effect: Update, Before: before, After: res.Attrs, DependsOn: res.DependsOn, Origin: origin})
		default:
			// No change: dropped from the plan entirely, per differ.rs's
			// Diff::NoChange(_) => {} -- not represented as a no-op entry.
		}
	}

	for key, st := range state.Resources {
		if !inScope(key, src) {
			continue
		}
		if _, stillDesired := seen[key]; stillDesired {
			continue
		}
		before, err := refresh(ctx, reg, key, st)
		if err != nil {
			return nil, err
		}
		if before == nil {
			// Already gone from the provider's perspective; nothing to delete.
			continue
		}
		changes = append(changes, Change{Key: key, Effect: Delete, Before: before, DependsOn: st.DependsOn, Origin: moduleSourceFor(key)})
	}

	ordered, err := order(changes, desired, state)
	if err != nil {
		return nil, err
	}

	summary := Summary{}
	for _, c := range ordered {
		switch c.Effect {
		case Create:
			summary.Add++
		case Update:
			summary.Change++
		case Delete:
			summary.Destroy++
		case Replace:
			summary.Replace++
		}
	}

	return &Plan{Changes: ordered, Summary: summary}, nil
}

func inScope(key ir.ResourceKey, src Source) bool {
	if src.Root {
		return true
	}
	segs := key.Segments()
	if len(segs) < len(src.Module) {
		return false
	}
	for i, seg := range src.Module {
		if segs[i] != seg {
			return false
		}
	}
	return true
}

// refresh performs the live drift-read against st's provider-assigned id
// and returns the attrs Build should diff against: st's persisted attrs
// overlaid with whatever the provider currently reports. A nil, nil return
// means the provider reports the resource gone (provider.NotFound), which
// Build treats as "state didn't know about this" -- Create instead of
// Update/Replace, no-op instead of Delete.
func refresh(ctx context.Context, reg Registry, key ir.ResourceKey, st *ir.State) (value.Map, error) {
	obs, err := reg.Read(ctx, key.QualifiedType, st.ProviderID)
	if err != nil {
		if provider.IsNotFound(err) {
			return nil, nil
		}
		return nil, &diag.PlanError{Message: fmt.Sprintf("drift-read %s: %v", key, err)}
	}
	return mergeObserved(st.Attrs, obs.Observed), nil
}

// mergeObserved overlays a live Read's observed attrs onto the persisted
// ones, so drift the provider reports (or fields it alone computes) wins
// over what was last written to state.
func mergeObserved(persisted, observed value.Map) value.Map {
	merged := make(value.Map, len(persisted)+len(observed))
	for k, v := range persisted {
		merged[k] = v
	}
	for k, v := range observed {
		merged[k] = v
	}
	return merged
}

// diffAttrs adapts ir.State/ir.Resource's value.Map pair into
// schema.DiffAttrs, tolerating an unknown schema (e.g. a resource type the
// current provider set doesn't register) by falling back to a a plain
// key-set comparison with nothing ever treated as immutable.
func diffAttrs(before, after value.Map, sch *schema.ResourceSchema) (schema.DiffResult, error) {
	if sch != nil {
		return schema.DiffAttrs(before, after, sch), nil
	}
	result := schema.DiffResult{}
	keys := map[string]struct{}{}
	for k := range before {
		keys[k] = struct{}{}
	}
	for k := range after {
		keys[k] = struct{}{}
	}
	for k := range keys {
		b, bok := before[k]
		a, aok := after[k]
		if bok && aok && b.Equal(a) {
			result.Unchanged = append(result.Unchanged, k)
		} else {
			result.InPlaceChanges = append(result.InPlaceChanges, k)
		}
	}
	return result, nil
}

// order runs Creates/Reads/Updates/Replaces in forward topological order
// (dependencies before dependents) and Deletes in reverse (dependents
// before dependencies), by building one combined dependency graph: edges
// for surviving desired resources come from ir.Resource.DependsOn, edges
// for resources being deleted come from the matching ir.State.DependsOn
// that apply persisted when the resource was created.
func order(changes []Change, desired []*ir.Resource, state *ir.StateDocument) ([]Change, error) {
	byKey := make(map[ir.ResourceKey]Change, len(changes))
	for _, c := range changes {
		byKey[c.Key] = c
	}

	g := graph.FromResources(desired)

	deletes := map[ir.ResourceKey]Change{}
	for _, c := range changes {
		if c.Effect == Delete {
			deletes[c.Key] = c
			g.AddNode(c.Key)
			if st, ok := state.Resources[c.Key]; ok {
				for dep := range st.DependsOn {
					g.AddEdge(c.Key, dep)
				}
			}
		}
	}

	forward, err := g.TopoSort()
	if err != nil {
		var cycleErr *graph.CycleError
		if asCycle(err, &cycleErr) {
			return nil, &diag.PlanError{Message: cycleErr.Error()}
		}
		return nil, err
	}

	var ordered []Change
	appended := map[ir.ResourceKey]struct{}{}
	for _, key := range forward {
		if c, ok := byKey[key]; ok && c.Effect != Delete {
			ordered = append(ordered, c)
			appended[key] = struct{}{}
		}
	}

	reverse, err := g.ReverseTopoSort()
	if err != nil {
		return nil, err
	}
	for _, key := range reverse {
		if c, ok := deletes[key]; ok {
			ordered = append(ordered, c)
			appended[key] = struct{}{}
		}
	}

	for _, c := range changes {
		if _, done := appended[c.Key]; !done {
			ordered = append(ordered, c)
		}
	}

	return ordered, nil
}

func asCycle(err error, target **graph.CycleError) bool {
	if ce, ok := err.(*graph.CycleError); ok {
		*target = ce
		return true
	}
	return false
}
