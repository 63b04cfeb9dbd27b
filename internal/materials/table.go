package materials

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/daimoniac/vesselfit/internal/errors"
)

//go:embed tables/asme_iid.yaml
var defaultTable []byte

// DefaultConstraint accepts any 1.x stress table.
const DefaultConstraint = ">=1.0.0, <2.0.0"

// Breakpoint is one (temperature, stress) pair of a material curve.
type Breakpoint struct {
	Temperature float64 `yaml:"temperature"`
	Value       float64 `yaml:"value"`
}

// Material is one row of the allowable stress table.
type Material struct {
	Spec        string       `yaml:"spec"`
	Grade       string       `yaml:"grade"`
	ProductForm string       `yaml:"productForm"`
	Aliases     []string     `yaml:"aliases"`
	Stress      []Breakpoint `yaml:"stress"`
}

// DisplayName is the canonical spelling, e.g. "SA-516 Grade 70".
func (m *Material) DisplayName() string {
	if m.Grade == "" {
		return m.Spec
	}
	return fmt.Sprintf("%s Grade %s", m.Spec, m.Grade)
}

// MinTemperature and MaxTemperature bound the tabulated range.
func (m *Material) MinTemperature() float64 { return m.Stress[0].Temperature }
func (m *Material) MaxTemperature() float64 { return m.Stress[len(m.Stress)-1].Temperature }

// StressTable is the versioned allowable stress reference. It is loaded once
// and never modified, so concurrent reads need no locking.
type StressTable struct {
	Version   string      `yaml:"version"`
	Edition   string      `yaml:"edition"`
	Materials []*Material `yaml:"materials"`

	version *semver.Version
}

// SemVer returns the parsed table version.
func (t *StressTable) SemVer() *semver.Version {
	return t.version
}

// Reference identifies the table in code references and audit records.
func (t *StressTable) Reference() string {
	return fmt.Sprintf("%s v%s", t.Edition, t.version)
}

// DefaultTable parses the embedded table.
func DefaultTable() (*StressTable, error) {
	return ParseTable(defaultTable, DefaultConstraint)
}

// LoadTable reads a table from path, or the embedded table when path is
// empty, and checks its version against constraint.
func LoadTable(path, constraint string) (*StressTable, error) {
	if constraint == "" {
		constraint = DefaultConstraint
	}
	if path == "" {
		return ParseTable(defaultTable, constraint)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewPermanentf("failed to read stress table %s: %w", path, err)
	}
	return ParseTable(data, constraint)
}

// ParseTable decodes and checks a stress table document.
func ParseTable(data []byte, constraint string) (*StressTable, error) {
	var table StressTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, errors.NewPermanentf("failed to parse stress table: %w", err)
	}

	v, err := semver.NewVersion(table.Version)
	if err != nil {
		return nil, errors.NewPermanentf("invalid stress table version %q: %w", table.Version, err)
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, errors.NewPermanentf("invalid stress table constraint %q: %w", constraint, err)
	}
	if !c.Check(v) {
		return nil, errors.NewPermanentf("stress table version %s does not satisfy %s", v, constraint)
	}
	table.version = v

	if len(table.Materials) == 0 {
		return nil, errors.NewPermanentf("stress table has no materials")
	}
	for _, m := range table.Materials {
		if err := checkCurve(m); err != nil {
			return nil, err
		}
	}
	return &table, nil
}

func checkCurve(m *Material) error {
	if m.Spec == "" {
		return errors.NewPermanentf("stress table entry without spec")
	}
	if len(m.Stress) == 0 {
		return errors.NewPermanentf("%s: no stress values", m.DisplayName())
	}
	sort.SliceStable(m.Stress, func(i, j int) bool {
		return m.Stress[i].Temperature < m.Stress[j].Temperature
	})
	for i, bp := range m.Stress {
		if bp.Value <= 0 {
			return errors.NewPermanentf("%s: non-positive stress at %.0f°F", m.DisplayName(), bp.Temperature)
		}
		if i > 0 && bp.Temperature == m.Stress[i-1].Temperature {
			return errors.NewPermanentf("%s: duplicate breakpoint at %.0f°F", m.DisplayName(), bp.Temperature)
		}
	}
	return nil
}
