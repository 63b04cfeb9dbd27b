package inspectionfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimoniac/vesselfit/internal/errors"
	"github.com/daimoniac/vesselfit/internal/types"
)

const samplePackage = `version: 1
inspectionId: insp-2025-014
vessel: V-101
defaults:
  insideDiameter: 72
  designPressure: 250
  designTemperature: 500
  materialSpec: SA-516 Grade 70
  jointEfficiency: 0.85
  nominalThickness: 0.75
  designCorrosionAllowance: 0.125
  installDate: 2000-01-01
  previousInspectionDate: 2020-01-01
  inspectionDate: 2025-01-01
components:
  - componentId: shell-1
    name: Shell course 1
    componentType: shell
    actualThickness: 0.70
    previousThickness: 0.72
  - componentId: head-1
    componentType: head
    headType: ellipsoidal
    jointEfficiency: 1.0
    actualThickness: 0.60
    designTemperature: 650
`

func TestParse(t *testing.T) {
	pkg, err := Parse([]byte(samplePackage))
	require.NoError(t, err)

	assert.Equal(t, "insp-2025-014", pkg.InspectionID)
	assert.Equal(t, "V-101", pkg.Vessel)
	require.Len(t, pkg.Components, 2)

	insp := pkg.Inspection()
	assert.Equal(t, "insp-2025-014", insp.InspectionID)

	shell := insp.Components[0]
	assert.Equal(t, "insp-2025-014", shell.InspectionID)
	assert.Equal(t, types.ComponentShell, shell.ComponentType)
	assert.Equal(t, 72.0, shell.InsideDiameter)
	assert.Equal(t, 250.0, shell.DesignPressure)
	require.NotNil(t, shell.DesignTemperature)
	assert.Equal(t, 500.0, *shell.DesignTemperature)
	assert.Equal(t, "SA-516 Grade 70", shell.MaterialSpec)
	assert.Equal(t, 0.85, shell.JointEfficiency)
	assert.Equal(t, 0.70, shell.ActualThickness)
	assert.Equal(t, 0.72, shell.PreviousThickness)
	assert.Equal(t, types.NewDate(2000, time.January, 1), shell.InstallDate)
	assert.Equal(t, types.NewDate(2025, time.January, 1), shell.InspectionDate)

	// Component values win over defaults
	head := insp.Components[1]
	assert.Equal(t, types.HeadEllipsoidal, head.HeadType)
	assert.Equal(t, 1.0, head.JointEfficiency)
	require.NotNil(t, head.DesignTemperature)
	assert.Equal(t, 650.0, *head.DesignTemperature)
	assert.Zero(t, head.PreviousThickness, "readings are never defaulted")
}

func TestInspection_DoesNotShareDefaults(t *testing.T) {
	pkg, err := Parse([]byte(samplePackage))
	require.NoError(t, err)

	insp := pkg.Inspection()
	*insp.Components[0].DesignTemperature = 999

	require.NotNil(t, pkg.Defaults.DesignTemperature)
	assert.Equal(t, 500.0, *pkg.Defaults.DesignTemperature)
}

func TestParse_ForeignComponentKept(t *testing.T) {
	pkg, err := Parse([]byte(`inspectionId: insp-1
components:
  - componentId: shell-1
    inspectionId: insp-9
`))
	require.NoError(t, err)
	assert.Equal(t, "insp-9", pkg.Inspection().Components[0].InspectionID)
}

func TestParse_JSON(t *testing.T) {
	pkg, err := Parse([]byte(`{"inspectionId": "insp-1", "components": [{"componentId": "shell-1", "componentType": "shell", "actualThickness": 0.5}]}`))
	require.NoError(t, err)
	assert.Equal(t, 0.5, pkg.Components[0].ActualThickness)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		errMsg string
	}{
		{"malformed", "components: [", "failed to parse inspection package"},
		{"bad date", "inspectionId: a\ncomponents:\n  - componentId: s\n    inspectionDate: 01/02/2025\n", "failed to parse inspection package"},
		{"future version", "version: 2\ninspectionId: a\n", "unsupported inspection package version 2"},
		{"no id", "components:\n  - componentId: s\n", "inspectionId is required"},
		{"no components", "inspectionId: a\n", "has no components"},
		{"component without id", "inspectionId: a\ncomponents:\n  - componentType: shell\n", "component 1 has no componentId"},
		{"duplicate component", "inspectionId: a\ncomponents:\n  - componentId: s\n  - componentId: s\n", "duplicate componentId s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
			assert.True(t, errors.IsPermanent(err))
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "insp.yml")
	require.NoError(t, os.WriteFile(path, []byte(samplePackage), 0o600))

	pkg, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "insp-2025-014", pkg.InspectionID)

	_, err = ParseFile(filepath.Join(dir, "missing.yml"))
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err), "a missing file may still be arriving")

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("inspectionId: a\n"), 0o600))
	_, err = ParseFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yml")
	assert.True(t, errors.IsPermanent(err))
}

func TestIsPackageFile(t *testing.T) {
	tests := map[string]bool{
		"insp.yml":          true,
		"insp.YAML":         true,
		"dir/insp.json":     true,
		"insp.txt":          false,
		".insp.yml.swp":     false,
		".hidden.yml":       false,
		"insp.yml~":         false,
		"/drop/2025/a.yaml": true,
	}
	for name, want := range tests {
		assert.Equal(t, want, IsPackageFile(name), name)
	}
}
