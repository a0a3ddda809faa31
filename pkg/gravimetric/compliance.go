package gravimetric

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultClass is the EMT table used when an instrument's class has no
// table of its own.
const DefaultClass = "default"

// EMTEntry is one row of a tolerance table: the maximum permissible
// systematic error and, optionally, random error for an instrument of the
// given nominal volume.
type EMTEntry struct {
	Volume float64 `json:"alcance_ul"`
	EMT    float64 `json:"emt_ul"`
	// CV is the maximum permissible random error in percent. Zero disables
	// the random error check.
	CV float64 `json:"cv_pct,omitempty"`
}

// EMTTables maps a lowercase device class to its tolerance table.
type EMTTables map[string][]EMTEntry

// DefaultEMTTables returns the ISO 8655-2 limits for single-channel
// air-displacement pipettes and the doubled limits for multichannel ones.
func DefaultEMTTables() EMTTables {
	single := []EMTEntry{
		{Volume: 1, EMT: 0.05, CV: 5},
		{Volume: 2, EMT: 0.08, CV: 2},
		{Volume: 5, EMT: 0.125, CV: 1.5},
		{Volume: 10, EMT: 0.12, CV: 0.8},
		{Volume: 20, EMT: 0.2, CV: 0.5},
		{Volume: 50, EMT: 0.5, CV: 0.4},
		{Volume: 100, EMT: 0.8, CV: 0.3},
		{Volume: 200, EMT: 1.6, CV: 0.3},
		{Volume: 500, EMT: 4, CV: 0.3},
		{Volume: 1000, EMT: 8, CV: 0.3},
		{Volume: 2000, EMT: 16, CV: 0.3},
		{Volume: 5000, EMT: 40, CV: 0.3},
		{Volume: 10000, EMT: 60, CV: 0.3},
	}
	multi := make([]EMTEntry, len(single))
	for i, e := range single {
		multi[i] = EMTEntry{Volume: e.Volume, EMT: 2 * e.EMT, CV: 2 * e.CV}
	}
	return EMTTables{
		DefaultClass: single,
		"multicanal":  multi,
	}
}

// Clone returns a deep copy of t.
func (t EMTTables) Clone() EMTTables {
	cp := make(EMTTables, len(t))
	for k, v := range t {
		cp[k] = append([]EMTEntry(nil), v...)
	}
	return cp
}

// Classes returns the known class names, sorted.
func (t EMTTables) Classes() []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate reports MalformedInput for unusable rows.
func (t EMTTables) Validate() error {
	for _, class := range t.Classes() {
		for _, r := range t[class] {
			if !isFinite(r.Volume) || r.Volume <= 0 || !isFinite(r.EMT) || r.EMT <= 0 || !isFinite(r.CV) || r.CV < 0 {
				return newError(KindMalformedInput, "emt."+class, "invalid row {alcance_ul: %g, emt_ul: %g, cv_pct: %g}", r.Volume, r.EMT, r.CV)
			}
		}
	}
	return nil
}

// Lookup returns the row for an instrument of class and full-scale volume
// nominal. Only exact volume matches are accepted; there is no
// interpolation between rows. An unknown class falls back to DefaultClass.
func (t EMTTables) Lookup(class string, nominal float64) (EMTEntry, error) {
	key := strings.ToLower(strings.TrimSpace(class))
	rows, ok := t[key]
	if !ok {
		key = DefaultClass
		rows, ok = t[key]
	}
	if !ok {
		return EMTEntry{}, newError(KindUnsupportedRange, "clase_instrumento", "no tolerance table for class %q", class)
	}
	for _, r := range rows {
		if sameVolume(r.Volume, nominal) {
			return r, nil
		}
	}
	return EMTEntry{}, newError(KindUnsupportedRange, "vol_nominal", "no tolerance entry for %g µL in table %q", nominal, key)
}

func sameVolume(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}

// DecisionRule selects how the verdict accounts for uncertainty.
type DecisionRule string

const (
	// DecisionGuardBand requires |E| + U ≤ EMT.
	DecisionGuardBand DecisionRule = "guard"
	// DecisionSimple requires |E| ≤ EMT; U is reported only.
	DecisionSimple DecisionRule = "simple"
)

// Verdict is the tolerance comparison of one aforo. All volumes in µL.
type Verdict struct {
	EMT float64
	// Extent is |E| + U, the largest plausible deviation from nominal.
	Extent float64
	// Ratio is the share of the EMT used by the deviation under the
	// decision rule in force.
	Ratio  float64
	Rule   DecisionRule
	Within bool
	// SDLimit is the random error limit of the full-scale volume expressed
	// as an absolute standard deviation; zero when the table has no CV.
	SDLimit  float64
	SDWithin bool
}

// Evaluate compares one aforo against the tolerance entry of the
// instrument's full-scale volume. For variable volume pipettes the
// full-scale limits apply, as absolute values, to every tested volume.
func Evaluate(rule DecisionRule, entry EMTEntry, stats Statistics, expanded float64) Verdict {
	if rule == "" {
		rule = DecisionSimple
	}
	extent := math.Abs(stats.Error) + expanded
	deviation := math.Abs(stats.Error)
	if rule == DecisionGuardBand {
		deviation = extent
	}
	v := Verdict{
		EMT:      entry.EMT,
		Extent:   extent,
		Ratio:    deviation / entry.EMT,
		Rule:     rule,
		Within:   deviation <= entry.EMT,
		SDWithin: true,
	}
	if entry.CV > 0 {
		v.SDLimit = entry.CV / 100 * entry.Volume
		v.SDWithin = stats.StdDev <= v.SDLimit
	}
	return v
}

// CheckRange verifies that every aforo lies within the instrument's
// declared range (0, nominal].
func CheckRange(nominal float64, aforos [AforoCount]AforoSeries) error {
	for i, a := range aforos {
		if a.Nominal > nominal && !sameVolume(a.Nominal, nominal) {
			return newError(KindUnsupportedRange, fmt.Sprintf("aforo%d.valor_nominal", i+1), "%g µL exceeds the instrument range of %g µL", a.Nominal, nominal)
		}
	}
	return nil
}
