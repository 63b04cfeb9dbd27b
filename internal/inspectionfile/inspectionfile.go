// Package inspectionfile reads inspection packages: YAML (or JSON) documents
// carrying the thickness readings of one inspection. Vessel-wide values are
// written once under defaults and merged into every component that leaves
// them unset.
package inspectionfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/types"
)

// Version is the package format this parser reads.
const Version = 1

// Package is one inspection package document.
//
//	version: 1
//	inspectionId: insp-2025-014
//	vessel: V-101
//	defaults:
//	  designPressure: 250
//	  materialSpec: SA-516 Grade 70
//	  inspectionDate: 2025-01-01
//	components:
//	  - componentId: shell-1
//	    componentType: shell
//	    actualThickness: 0.70
type Package struct {
	Version      int                    `yaml:"version"`
	InspectionID string                 `yaml:"inspectionId"`
	Vessel       string                 `yaml:"vessel,omitempty"`
	Defaults     types.ComponentInput   `yaml:"defaults,omitempty"`
	Components   []types.ComponentInput `yaml:"components"`
}

// IsPackageFile reports whether name has an inspection package extension.
func IsPackageFile(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yml", ".yaml", ".json":
		return true
	}
	return false
}

// ParseFile reads and parses an inspection package file
func ParseFile(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewTransientf("failed to read inspection package: %w", err)
	}
	pkg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return pkg, nil
}

// Parse decodes and checks an inspection package document
func Parse(data []byte) (*Package, error) {
	var pkg Package
	if err := yaml.Unmarshal(data, &pkg); err != nil {
		return nil, errors.NewPermanentf("%w: failed to parse inspection package: %v", errors.ErrInvalidInput, err)
	}
	if err := pkg.check(); err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (p *Package) check() error {
	if p.Version != 0 && p.Version != Version {
		return errors.NewPermanentf("%w: unsupported inspection package version %d", errors.ErrInvalidInput, p.Version)
	}
	if p.InspectionID == "" {
		return errors.NewPermanentf("%w: inspectionId is required", errors.ErrInvalidInput)
	}
	if len(p.Components) == 0 {
		return errors.NewPermanentf("%w: inspection %s has no components", errors.ErrInvalidInput, p.InspectionID)
	}

	seen := make(map[string]bool, len(p.Components))
	for i, c := range p.Components {
		if c.ComponentID == "" {
			return errors.NewPermanentf("%w: component %d has no componentId", errors.ErrInvalidInput, i+1)
		}
		if seen[c.ComponentID] {
			return errors.NewPermanentf("%w: duplicate componentId %s", errors.ErrInvalidInput, c.ComponentID)
		}
		seen[c.ComponentID] = true
	}
	return nil
}

// Inspection returns the package's components with defaults merged in.
// Values set on a component always win. Components naming a different
// inspection are kept as written so the assessment can report them.
func (p *Package) Inspection() types.Inspection {
	components := make([]types.ComponentInput, 0, len(p.Components))
	for _, c := range p.Components {
		components = append(components, mergeDefaults(c, p.Defaults, p.InspectionID))
	}
	return types.Inspection{InspectionID: p.InspectionID, Components: components}
}

func mergeDefaults(c, d types.ComponentInput, inspectionID string) types.ComponentInput {
	if c.InspectionID == "" {
		c.InspectionID = inspectionID
	}
	if c.ComponentType == "" {
		c.ComponentType = d.ComponentType
	}
	if c.ComponentType == types.ComponentHead && c.HeadType == "" {
		c.HeadType = d.HeadType
	}

	setFloat(&c.InsideDiameter, d.InsideDiameter)
	setFloat(&c.CrownRadius, d.CrownRadius)
	setFloat(&c.KnuckleRadius, d.KnuckleRadius)
	setFloat(&c.AspectRatio, d.AspectRatio)
	setFloat(&c.AttachmentFactor, d.AttachmentFactor)
	setFloat(&c.DesignPressure, d.DesignPressure)
	if c.DesignTemperature == nil && d.DesignTemperature != nil {
		t := *d.DesignTemperature
		c.DesignTemperature = &t
	}
	if c.MaterialSpec == "" {
		c.MaterialSpec = d.MaterialSpec
	}
	setFloat(&c.AllowableStress, d.AllowableStress)
	setFloat(&c.JointEfficiency, d.JointEfficiency)
	setFloat(&c.NominalThickness, d.NominalThickness)
	setFloat(&c.DesignCorrosionAllowance, d.DesignCorrosionAllowance)
	setFloat(&c.SpecificGravity, d.SpecificGravity)
	setFloat(&c.LiquidHeight, d.LiquidHeight)

	setDate(&c.InstallDate, d.InstallDate)
	setDate(&c.PreviousInspectionDate, d.PreviousInspectionDate)
	setDate(&c.InspectionDate, d.InspectionDate)
	return c
}

func setFloat(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

func setDate(v *types.Date, def types.Date) {
	if v.IsZero() {
		*v = def
	}
}
