package ir

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/carina-lang/carina/internal/value"
)

// CurrentStateVersion is the highest state file version this build
// understands. Loading a document with a higher version is a hard error
// per spec.md §6 ("unknown higher versions are refused").
const CurrentStateVersion = 1

type stateDocumentJSON struct {
	Version   int                        `json:"version"`
	Lineage   string                     `json:"lineage"`
	Serial    int                        `json:"serial"`
	Resources map[string]resourceJSON    `json:"resources"`
}

type resourceJSON struct {
	Type       string                 `json:"type"`
	ProviderID string                 `json:"provider_id"`
	Attrs      map[string]interface{} `json:"attrs"`
	DependsOn  []string               `json:"depends_on,omitempty"`
}

// MarshalJSON renders the canonical state-file form: keys sorted, nested
// maps sorted by value.Map.SortedKeys via value.ToJSON.
func (d *StateDocument) MarshalJSON() ([]byte, error) {
	doc := stateDocumentJSON{
		Version:   d.Version,
		Lineage:   d.Lineage,
		Serial:    d.Serial,
		Resources: make(map[string]resourceJSON, len(d.Resources)),
	}
	for key, st := range d.Resources {
		attrs := st.Attrs
		if attrs == nil {
			attrs = value.Map{}
		}
		var deps []string
		for dep := range st.DependsOn {
			deps = append(deps, dep.String())
		}
		sort.Strings(deps)
		doc.Resources[key.String()] = resourceJSON{
			Type:       st.QualifiedType,
			ProviderID: st.ProviderID,
			Attrs:      value.ToJSON(attrs).(map[string]interface{}),
			DependsOn:  deps,
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// UnmarshalJSON parses the canonical state-file form back into a
// StateDocument, reconstructing each ResourceKey and Attrs value.Map.
func (d *StateDocument) UnmarshalJSON(data []byte) error {
	var doc stateDocumentJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("malformed state document: %w", err)
	}
	if doc.Version > CurrentStateVersion {
		return fmt.Errorf("state file version %d is newer than this build supports (max %d)", doc.Version, CurrentStateVersion)
	}

	d.Version = doc.Version
	d.Lineage = doc.Lineage
	d.Serial = doc.Serial
	d.Resources = make(map[ResourceKey]*State, len(doc.Resources))

	for keyStr, res := range doc.Resources {
		key, err := ParseResourceKey(keyStr)
		if err != nil {
			return fmt.Errorf("state document contains malformed resource key %q: %w", keyStr, err)
		}
		attrs, ok := value.FromJSON(res.Attrs).(value.Map)
		if !ok {
			attrs = value.Map{}
		}
		var dependsOn map[ResourceKey]struct{}
		for _, depStr := range res.DependsOn {
			depKey, err := ParseResourceKey(depStr)
			if err != nil {
				return fmt.Errorf("state document contains malformed dependency key %q for %q: %w", depStr, keyStr, err)
			}
			if dependsOn == nil {
				dependsOn = map[ResourceKey]struct{}{}
			}
			dependsOn[depKey] = struct{}{}
		}
		d.Resources[key] = &State{
			QualifiedType: res.Type,
			LocalName:     key.LocalName,
			NamespacePath: key.Segments(),
			ProviderID:    res.ProviderID,
			Attrs:         attrs,
			LastObserved:  attrs,
			DependsOn:     dependsOn,
		}
	}
	return nil
}

// SortedKeys returns a StateDocument's resource keys in deterministic
// string order.
func (d *StateDocument) SortedKeys() []ResourceKey {
	keys := make([]ResourceKey, 0, len(d.Resources))
	for k := range d.Resources {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
