package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/volumetria/pipetcal/pkg/gravimetric"
	"github.com/volumetria/pipetcal/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		Listen:       ptr.To("127.0.0.1:5000"),
		DecisionRule: ptr.To(string(gravimetric.DecisionSimple)),
		// Request bodies may carry a "constantes" block with the lab's
		// certificate corrections. Operators that want one authoritative
		// coefficient set can turn this off.
		AllowRequestOverrides: ptr.To(true),
		Metrics:               ptr.To(true),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

// RawFileConfig is the on-disk form. Nil fields take package defaults.
// Constants and Uncertainty are overlaid field by field on the defaults;
// EMT tables replace the default table of the same class.
type RawFileConfig struct {
	Listen                *string                   `json:"listen,omitempty"`
	Constants             *gravimetric.Constants    `json:"constants,omitempty"`
	Uncertainty           *gravimetric.BudgetInputs `json:"uncertainty,omitempty"`
	EMT                   gravimetric.EMTTables     `json:"emt,omitempty"`
	DecisionRule          *string                   `json:"decisionRule,omitempty"`
	AllowRequestOverrides *bool                     `json:"allowRequestOverrides,omitempty"`
	Metrics               *bool                     `json:"metrics,omitempty"`
}

func (f *File) Listen() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Listen != nil {
		return *f.c.Listen
	}
	return *defaultFileConfig.Listen
}

func (f *File) Constants() gravimetric.Constants {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Constants != nil {
		return f.c.Constants.Clone()
	}
	return gravimetric.DefaultConstants()
}

func (f *File) EMTTables() gravimetric.EMTTables {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	tables := gravimetric.DefaultEMTTables()
	for class, rows := range f.c.EMT {
		tables[strings.ToLower(class)] = append([]gravimetric.EMTEntry(nil), rows...)
	}
	return tables
}

func (f *File) Uncertainty() gravimetric.BudgetInputs {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Uncertainty != nil {
		return *f.c.Uncertainty
	}
	return gravimetric.DefaultBudgetInputs()
}

func (f *File) DecisionRule() gravimetric.DecisionRule {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.DecisionRule != nil {
		return gravimetric.DecisionRule(*f.c.DecisionRule)
	}
	return gravimetric.DecisionRule(*defaultFileConfig.DecisionRule)
}

func (f *File) AllowRequestOverrides() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.AllowRequestOverrides != nil {
		return *f.c.AllowRequestOverrides
	}
	return *defaultFileConfig.AllowRequestOverrides
}

func (f *File) MetricsEnabled() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Metrics != nil {
		return *f.c.Metrics
	}
	return *defaultFileConfig.Metrics
}

func (f *File) SetListen(addr string) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Listen = &addr
}

// SetEMTTable replaces the tolerance table of class. The rows are validated
// first; on error the configuration is left untouched.
func (f *File) SetEMTTable(class string, rows []gravimetric.EMTEntry) error {
	if f.c == nil {
		panic("config is nil")
	}

	class, err := ValidateEMTTable(class, rows)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.setEMTTable(class, rows)
	return nil
}

// SaveEMTTable replaces the tolerance table of class and saves the file. If
// saving fails the previous table is restored, so a rejected table never
// stays in memory.
func (f *File) SaveEMTTable(class string, rows []gravimetric.EMTEntry) error {
	if f.c == nil {
		panic("config is nil")
	}

	class, err := ValidateEMTTable(class, rows)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev, existed := f.c.EMT[class]
	f.setEMTTable(class, rows)
	if err := f.save(); err != nil {
		if existed {
			f.c.EMT[class] = prev
		} else {
			delete(f.c.EMT, class)
		}
		return err
	}
	return nil
}

// ValidateEMTTable checks rows as a table for class and returns the
// normalised class name.
func ValidateEMTTable(class string, rows []gravimetric.EMTEntry) (string, error) {
	class = strings.ToLower(strings.TrimSpace(class))
	if class == "" {
		return "", pkgerrors.New("class must not be empty")
	}
	if len(rows) == 0 {
		return "", pkgerrors.Errorf("table %q has no rows", class)
	}
	if err := (gravimetric.EMTTables{class: rows}).Validate(); err != nil {
		return "", pkgerrors.Wrapf(err, "invalid table %q", class)
	}
	return class, nil
}

func (f *File) setEMTTable(class string, rows []gravimetric.EMTEntry) {
	if f.c.EMT == nil {
		f.c.EMT = gravimetric.EMTTables{}
	}
	f.c.EMT[class] = append([]gravimetric.EMTEntry(nil), rows...)
}

func (f *File) SetDecisionRule(rule gravimetric.DecisionRule) error {
	if f.c == nil {
		panic("config is nil")
	}

	switch rule {
	case gravimetric.DecisionSimple, gravimetric.DecisionGuardBand:
	default:
		return pkgerrors.Errorf("unknown decision rule %q", rule)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.DecisionRule = ptr.To(string(rule))
	return nil
}

func (f *File) SetAllowRequestOverrides(b bool) {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.AllowRequestOverrides = &b
}

// sections holds the structured parts of the file undecoded so they can be
// overlaid on the package defaults.
type sections struct {
	Constants   json.RawMessage `json:"constants"`
	Uncertainty json.RawMessage `json:"uncertainty"`
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		// If the file is empty, return the empty config.
		// Do not make f.c a nil.
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	err = json.Unmarshal(b, &conf)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}

	var s sections
	if err := json.Unmarshal(b, &s); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	if len(s.Constants) > 0 && string(s.Constants) != "null" {
		c := gravimetric.DefaultConstants()
		if err := json.Unmarshal(s.Constants, &c); err != nil {
			return pkgerrors.Wrapf(err, "failed to unmarshal constants from file %s", f.filepath)
		}
		conf.Constants = &c
	}
	if len(s.Uncertainty) > 0 && string(s.Uncertainty) != "null" {
		u := gravimetric.DefaultBudgetInputs()
		if err := json.Unmarshal(s.Uncertainty, &u); err != nil {
			return pkgerrors.Wrapf(err, "failed to unmarshal uncertainty from file %s", f.filepath)
		}
		conf.Uncertainty = &u
	}
	f.c = &conf

	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.save()
}

// save writes the file. The caller holds f.mu.
func (f *File) save() error {
	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	err = enc.Encode(f.c)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	c := f.Constants()
	u := f.Uncertainty()
	return logrus.Fields{
		"listen":                f.Listen(),
		"decisionRule":          f.DecisionRule(),
		"coverage":              u.Coverage,
		"defaultMaterial":       c.DefaultMaterial,
		"weightDensity":         c.WeightDensity,
		"emtClasses":            f.EMTTables().Classes(),
		"allowRequestOverrides": f.AllowRequestOverrides(),
		"metrics":               f.MetricsEnabled(),
	}
}
