package materials

import (
	"fmt"
	"math"
	"sort"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/types"
)

const (
	maxSuggestions = 5
	codeRefStress  = "UG-23"
)

// MaterialValidation is the result of checking a material designation.
type MaterialValidation struct {
	IsValid        bool     `json:"isValid"`
	NormalizedSpec string   `json:"normalizedSpec,omitempty"`
	Suggestions    []string `json:"suggestions"`
}

// StressLookup is an allowable stress with its provenance.
type StressLookup struct {
	Stress         float64            `json:"stress"`
	Status         types.StressStatus `json:"status"`
	NormalizedSpec string             `json:"normalizedSpec"`
	Temperature    float64            `json:"temperature"`
	TableReference string             `json:"tableReference"`
	Message        string             `json:"message,omitempty"`
}

// Extrapolated reports whether the value lies outside the tabulated range.
func (l StressLookup) Extrapolated() bool {
	return l.Status == types.StressExtrapolated
}

// Resolver answers material and allowable stress queries against a table.
type Resolver struct {
	table *StressTable
	index map[string]*Material
}

// NewResolver indexes table by normalized spec and alias.
func NewResolver(table *StressTable) (*Resolver, error) {
	r := &Resolver{
		table: table,
		index: make(map[string]*Material),
	}
	for _, m := range table.Materials {
		keys := []string{Normalize(m.DisplayName())}
		for _, alias := range m.Aliases {
			keys = append(keys, Normalize(alias))
		}
		for _, key := range keys {
			if existing, ok := r.index[key]; ok && existing != m {
				return nil, errors.NewPermanentf("stress table: %q is ambiguous between %s and %s",
					key, existing.DisplayName(), m.DisplayName())
			}
			r.index[key] = m
		}
	}
	return r, nil
}

// Table returns the underlying stress table.
func (r *Resolver) Table() *StressTable {
	return r.table
}

// Lookup returns the table row for spec, if any.
func (r *Resolver) Lookup(spec string) (*Material, bool) {
	m, ok := r.index[Normalize(spec)]
	return m, ok
}

// ValidateMaterial normalizes spec against the known designations. An unknown
// spec yields a MaterialNotFound error alongside ranked suggestions.
func (r *Resolver) ValidateMaterial(spec string) (MaterialValidation, error) {
	if m, ok := r.Lookup(spec); ok {
		return MaterialValidation{
			IsValid:        true,
			NormalizedSpec: m.DisplayName(),
			Suggestions:    []string{},
		}, nil
	}

	suggestions := r.suggest(spec)
	err := &errors.CalcError{
		Kind:          errors.KindMaterialNotFound,
		Field:         "materialSpec",
		Message:       fmt.Sprintf("no allowable stress data for %q", spec),
		CodeReference: codeRefStress,
		Candidates:    suggestions,
	}
	if len(suggestions) > 0 {
		err.Suggestion = fmt.Sprintf("did you mean %s?", suggestions[0])
	}
	return MaterialValidation{IsValid: false, Suggestions: suggestions}, err
}

// AllowableStress returns the allowable stress for spec at temperature (°F).
// Values between breakpoints are interpolated linearly; values outside the
// table are extrapolated from the two nearest breakpoints and reported with
// status "error".
func (r *Resolver) AllowableStress(spec string, temperature float64) (StressLookup, error) {
	if _, err := r.ValidateMaterial(spec); err != nil {
		return StressLookup{}, err
	}
	m, _ := r.Lookup(spec)

	lookup := StressLookup{
		NormalizedSpec: m.DisplayName(),
		Temperature:    temperature,
		TableReference: fmt.Sprintf("%s, %s at %.0f°F", r.table.Reference(), m.DisplayName(), temperature),
	}

	curve := m.Stress
	i := sort.Search(len(curve), func(i int) bool { return curve[i].Temperature >= temperature })

	switch {
	case i < len(curve) && curve[i].Temperature == temperature:
		lookup.Stress = curve[i].Value
		lookup.Status = types.StressOK
		return lookup, nil

	case i > 0 && i < len(curve):
		lookup.Stress = interpolate(curve[i-1], curve[i], temperature)
		lookup.Status = types.StressInterpolated
		lookup.Message = fmt.Sprintf("interpolated between %.0f°F and %.0f°F",
			curve[i-1].Temperature, curve[i].Temperature)
		return lookup, nil
	}

	lookup.Stress = extrapolate(curve, temperature)
	lookup.Status = types.StressExtrapolated
	lookup.Message = fmt.Sprintf("%.0f°F is outside the tabulated range %.0f°F to %.0f°F; value extrapolated",
		temperature, m.MinTemperature(), m.MaxTemperature())

	if lookup.Stress <= 0 || math.IsNaN(lookup.Stress) {
		return lookup, errors.NewCalcError(errors.KindOutOfPhysicalRange, "designTemperature", codeRefStress,
			"extrapolated stress for %s at %.0f°F is not positive", m.DisplayName(), temperature).
			WithSuggestion("supply the allowable stress from the applicable code edition")
	}
	return lookup, nil
}

func interpolate(lo, hi Breakpoint, t float64) float64 {
	return lo.Value + (hi.Value-lo.Value)*(t-lo.Temperature)/(hi.Temperature-lo.Temperature)
}

func extrapolate(curve []Breakpoint, t float64) float64 {
	if len(curve) == 1 {
		return curve[0].Value
	}
	if t < curve[0].Temperature {
		return interpolate(curve[0], curve[1], t)
	}
	n := len(curve)
	return interpolate(curve[n-2], curve[n-1], t)
}

type candidate struct {
	name  string
	score int
}

// suggest ranks known materials by closeness to spec: same product spec
// first, then by edit distance of the normalized keys.
func (r *Resolver) suggest(spec string) []string {
	key := Normalize(spec)
	base := baseKey(spec)

	var cands []candidate
	for _, m := range r.table.Materials {
		name := m.DisplayName()
		score := editDistance(key, Normalize(name))
		if base == "" || baseKey(name) != base {
			score += 100
		}
		cands = append(cands, candidate{name: name, score: score})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score < cands[j].score
		}
		return cands[i].name < cands[j].name
	})

	out := make([]string, 0, maxSuggestions)
	for _, c := range cands {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.name)
	}
	return out
}
