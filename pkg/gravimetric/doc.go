// Package gravimetric implements the volume calibration engine for piston
// pipettes tested by the gravimetric method. It contains:
//
//   - Constants: water/air density coefficients, sensor corrections, material
//     expansion and reference weight density, validated once and then shared
//     read-only
//   - Converter: mass difference + environment -> volume at 20 °C
//   - Aggregate: per-aforo mean, dispersion and error of measurement
//   - Budget: Type A / Type B uncertainty contributions and expanded uncertainty
//   - EMTTables / Evaluate: maximum permissible error lookup and verdict
//   - Engine: the orchestration over the three aforos of a calibration
//
// Everything in this package is a pure function of its inputs. An Engine may
// be used from any number of goroutines at once.
package gravimetric
