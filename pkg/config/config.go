package config

import (
	"github.com/sirupsen/logrus"

	"github.com/volumetria/pipetcal/pkg/gravimetric"
)

type Config interface {
	// Listen is a TCP address or "unix:" followed by a socket path.
	Listen() string
	Constants() gravimetric.Constants
	EMTTables() gravimetric.EMTTables
	Uncertainty() gravimetric.BudgetInputs
	DecisionRule() gravimetric.DecisionRule
	AllowRequestOverrides() bool
	MetricsEnabled() bool

	SetListen(string)
	SetEMTTable(class string, rows []gravimetric.EMTEntry) error
	// SaveEMTTable sets and saves a table, restoring the previous one when
	// saving fails.
	SaveEMTTable(class string, rows []gravimetric.EMTEntry) error
	SetDecisionRule(gravimetric.DecisionRule) error
	SetAllowRequestOverrides(bool)

	LogrusFields() logrus.Fields

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}

// Settings builds validated engine settings from c.
func Settings(c Config) (gravimetric.Settings, error) {
	s := gravimetric.Settings{
		Constants: c.Constants(),
		Budget:    c.Uncertainty(),
		EMT:       c.EMTTables(),
		Rule:      c.DecisionRule(),
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
