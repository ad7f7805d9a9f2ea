// Package interpreter implements spec.md §4.6's sequential Apply engine:
// it walks a plan.Plan in order, invokes the matching provider operation
// for each Change, and back-propagates every Create's assigned id into
// the remaining plan entries that reference it before they run.
//
// Grounded on original_source/carina-core/src/interpreter.rs's apply loop
// (sequential, id-propagation via a resolved-values map, ContinueOnError
// accumulating a multi-error instead of aborting on the first failure).
package interpreter

import (
	"context"
	"fmt"
	"time"

	"github.com/carina-lang/carina/internal/diag"
	"github.com/carina-lang/carina/internal/ir"
	"github.com/carina-lang/carina/internal/plan"
	"github.com/carina-lang/carina/internal/provider"
	"github.com/carina-lang/carina/internal/value"
)

// Provider is the subset of provider.Registry's surface the interpreter
// needs, so tests can supply a narrower fake.
type Provider interface {
	Create(ctx context.Context, qualifiedType string, attrs value.Map) (provider.Observation, error)
	Read(ctx context.Context, qualifiedType, providerID string) (provider.Observation, error)
	Update(ctx context.Context, qualifiedType, providerID string, attrs value.Map) (provider.Observation, error)
	Delete(ctx context.Context, qualifiedType, providerID string) error
}

// Interpreter applies a plan.Plan against a Provider, producing an
// updated ir.StateDocument.
type Interpreter struct {
	Provider Provider

	// ContinueOnError keeps applying remaining independent changes after
	// one fails, instead of aborting immediately; a change that depends on
	// a failed or skipped change is skipped. Failures accumulate
	// into the returned error as a joined multi-error. Either way, state
	// is persisted for everything that succeeded before the failure
	// (spec.md §4.6's partial-failure persistence guarantee).
	ContinueOnError bool

	// DryRun skips every provider call; Create/Update/Delete are
	// simulated using the planned After attrs so downstream references
	// resolve the same way a real run would, but nothing reaches the
	// provider and state is never written by the caller.
	DryRun bool

	// EffectTimeout bounds each individual Create/Read/Update/Delete
	// call; zero means no per-call timeout.
	EffectTimeout time.Duration
}

// Result is what one Apply produces: the updated state document and the
// per-change outcomes, in the order they ran.
type Result struct {
	State   *ir.StateDocument
	Applied []Outcome
}

// Outcome records what happened to one plan.Change.
type Outcome struct {
	Change plan.Change
	Err    error
}

// Apply runs p's changes in order against doc, returning a new
// StateDocument (doc is not mutated) and a joined error if any change
// failed. When ContinueOnError is false, the first failure stops
// remaining changes from running at all; their Outcome.Err is
// diag.PlanError{"skipped: an earlier change failed"}.
func (it *Interpreter) Apply(ctx context.Context, p *plan.Plan, doc *ir.StateDocument) (*Result, error) {
	next := doc.Clone()

	// resolved maps a resource key's canonical string to its observed
	// attrs once that resource has been created/updated/read this run,
	// so later changes' value.Reference{Target: ...} placeholders can be
	// substituted before their provider call.
	resolved := map[string]value.Map{}
	for key, st := range next.Resources {
		resolved[key.String()] = st.Attrs
	}

	var outcomes []Outcome
	var failed bool
	failedKeys := map[ir.ResourceKey]struct{}{}

	for _, change := range p.Changes {
		if failed && !it.ContinueOnError {
			outcomes = append(outcomes, Outcome{Change: change, Err: &diag.PlanError{Message: "skipped: an earlier change failed and --continue-on-error was not set"}})
			continue
		}
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, Outcome{Change: change, Err: fmt.Errorf("skipped: %w", err)})
			failed = true
			continue
		}
		blocked := false
		for dep := range change.DependsOn {
			if _, ok := failedKeys[dep]; ok {
				blocked = true
			}
		}
		if blocked {
			failedKeys[change.Key] = struct{}{}
			outcomes = append(outcomes, Outcome{Change: change, Err: &diag.PlanError{Message: "skipped: a change it depends on failed"}})
			continue
		}

		substituted := substituteReferences(change.After, resolved)
		change.After = substituted

		err := it.applyOne(ctx, change, next, resolved)
		outcomes = append(outcomes, Outcome{Change: change, Err: err})
		if err != nil {
			failed = true
			failedKeys[change.Key] = struct{}{}
			if !it.ContinueOnError {
				continue
			}
		}
	}

	if failed {
		return &Result{State: next, Applied: outcomes}, joinErrors(outcomes)
	}
	return &Result{State: next, Applied: outcomes}, nil
}

func (it *Interpreter) applyOne(ctx context.Context, change plan.Change, doc *ir.StateDocument, resolved map[string]value.Map) error {
	ctx, cancel := it.withTimeout(ctx)
	defer cancel()

	switch change.Effect {
	case plan.Create:
		if it.DryRun {
			resolved[change.Key.String()] = change.After
			doc.Resources[change.Key] = stateFrom(change.Key, "dry-run", change.After, change.DependsOn)
			return nil
		}
		obs, err := it.Provider.Create(ctx, change.Key.QualifiedType, change.After)
		if err != nil {
			return fmt.Errorf("creating %s: %w", change.Key, err)
		}
		merged := mergeObserved(change.After, obs.Observed)
		resolved[change.Key.String()] = merged
		doc.Resources[change.Key] = stateFrom(change.Key, obs.ProviderID, merged, change.DependsOn)
		return nil

	case plan.Update:
		existing := doc.Resources[change.Key]
		if existing == nil {
			return &diag.PlanError{Message: fmt.Sprintf("update planned for %s but no prior state exists", change.Key)}
		}
		if it.DryRun {
			resolved[change.Key.String()] = change.After
			doc.Resources[change.Key] = stateFrom(change.Key, existing.ProviderID, change.After, change.DependsOn)
			return nil
		}
		obs, err := it.Provider.Update(ctx, change.Key.QualifiedType, existing.ProviderID, change.After)
		if err != nil {
			return fmt.Errorf("updating %s: %w", change.Key, err)
		}
		merged := mergeObserved(change.After, obs.Observed)
		resolved[change.Key.String()] = merged
		doc.Resources[change.Key] = stateFrom(change.Key, existing.ProviderID, merged, change.DependsOn)
		return nil

	case plan.Replace:
		existing := doc.Resources[change.Key]
		if existing != nil && !it.DryRun {
			if err := it.Provider.Delete(ctx, change.Key.QualifiedType, existing.ProviderID); err != nil {
				return fmt.Errorf("replacing %s (delete phase): %w", change.Key, err)
			}
		}
		if it.DryRun {
			resolved[change.Key.String()] = change.After
			doc.Resources[change.Key] = stateFrom(change.Key, "dry-run", change.After, change.DependsOn)
			return nil
		}
		obs, err := it.Provider.Create(ctx, change.Key.QualifiedType, change.After)
		if err != nil {
			return fmt.Errorf("replacing %s (create phase): %w", change.Key, err)
		}
		merged := mergeObserved(change.After, obs.Observed)
		resolved[change.Key.String()] = merged
		doc.Resources[change.Key] = stateFrom(change.Key, obs.ProviderID, merged, change.DependsOn)
		return nil

	case plan.Delete:
		existing := doc.Resources[change.Key]
		if existing == nil {
			delete(doc.Resources, change.Key)
			return nil
		}
		if !it.DryRun {
			if err := it.Provider.Delete(ctx, change.Key.QualifiedType, existing.ProviderID); err != nil {
				return fmt.Errorf("deleting %s: %w", change.Key, err)
			}
		}
		delete(doc.Resources, change.Key)
		delete(resolved, change.Key.String())
		return nil

	case plan.Read, plan.NoOp:
		existing := doc.Resources[change.Key]
		if existing == nil {
			return nil
		}
		if change.Effect == plan.Read && !it.DryRun {
			obs, err := it.Provider.Read(ctx, change.Key.QualifiedType, existing.ProviderID)
			if err != nil {
				if provider.IsNotFound(err) {
					delete(doc.Resources, change.Key)
					delete(resolved, change.Key.String())
					return nil
				}
				return fmt.Errorf("reading %s: %w", change.Key, err)
			}
			doc.Resources[change.Key] = stateFrom(change.Key, existing.ProviderID, obs.Observed, existing.DependsOn)
			resolved[change.Key.String()] = obs.Observed
		}
		return nil
	}
	return &diag.PlanError{Message: fmt.Sprintf("unhandled effect %q for %s", change.Effect, change.Key)}
}

func (it *Interpreter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if it.EffectTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, it.EffectTimeout)
}

func stateFrom(key ir.ResourceKey, providerID string, attrs value.Map, dependsOn map[ir.ResourceKey]struct{}) *ir.State {
	return &ir.State{
		QualifiedType: key.QualifiedType,
		LocalName:     key.LocalName,
		NamespacePath: key.Segments(),
		Attrs:         attrs,
		ProviderID:    providerID,
		LastObserved:  attrs,
		DependsOn:     dependsOn,
	}
}

// mergeObserved overlays the provider's observed attrs onto the planned
// ones: user-supplied values win unless the provider actively reports a
// different value for that key (covers provider-normalized fields like a
// canonicalized CIDR), and any key the provider introduces (like "id")
// that wasn't planned at all is added.
func mergeObserved(planned, observed value.Map) value.Map {
	merged := value.Map{}
	for k, v := range planned {
		merged[k] = v
	}
	for k, v := range observed {
		merged[k] = v
	}
	return merged
}

// substituteReferences rewrites every value.Reference in attrs whose
// Target names an already-resolved resource, replacing it with that
// resource's observed attribute value. References to not-yet-resolved
// resources are left as-is; Build()'s ordering guarantees they become
// resolvable by the time their own Change runs.
func substituteReferences(attrs value.Map, resolved map[string]value.Map) value.Map {
	if attrs == nil {
		return nil
	}
	out := value.Walk(attrs, func(v value.Value) value.Value {
		ref, ok := v.(value.Reference)
		if !ok {
			return v
		}
		target, ok := resolved[ref.Target]
		if !ok {
			return v
		}
		resolvedVal, ok := target[ref.Attribute]
		if !ok {
			return v
		}
		return resolvedVal
	})
	return out.(value.Map)
}

func joinErrors(outcomes []Outcome) error {
	var msgs []string
	for _, o := range outcomes {
		if o.Err != nil {
			msgs = append(msgs, fmt.Sprintf("%s: %v", o.Change.Key, o.Err))
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	msg := "apply failed:"
	for _, m := range msgs {
		msg += "\n  - " + m
	}
	return &diag.PlanError{Message: msg}
}

// Destroy runs every resource currently in doc through Delete, in reverse
// dependency order, ignoring the desired configuration entirely -- the
// dedicated entry point spec.md §6's `carina destroy` command uses.
func Destroy(ctx context.Context, it *Interpreter, order []ir.ResourceKey, doc *ir.StateDocument) (*Result, error) {
	next := doc.Clone()
	var outcomes []Outcome
	var failed bool

	for _, key := range order {
		existing := next.Resources[key]
		if existing == nil {
			continue
		}
		change := plan.Change{Key: key, Effect: plan.Delete, Before: existing.Attrs}
		if failed && !it.ContinueOnError {
			outcomes = append(outcomes, Outcome{Change: change, Err: &diag.PlanError{Message: "skipped: an earlier delete failed"}})
			continue
		}
		err := it.applyOne(ctx, change, next, map[string]value.Map{})
		outcomes = append(outcomes, Outcome{Change: change, Err: err})
		if err != nil {
			failed = true
		}
	}

	if failed {
		return &Result{State: next, Applied: outcomes}, joinErrors(outcomes)
	}
	return &Result{State: next, Applied: outcomes}, nil
}
