package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		descs   []Descriptor
		wantErr error
	}{
		{
			name: "valid catalog",
			descs: []Descriptor{
				{Name: "creatinine", Type: TypeFloat, Min: 0.1, Max: 20, Policy: PolicyCarry},
				{Name: "age", Type: TypeInt, Min: 0, Max: 120, Policy: PolicyCarry},
				{Name: "egfr", Type: TypeFloat, Min: 0, Max: 200, Derived: true,
					Dependencies: []string{"creatinine", "age"}},
			},
		},
		{
			name: "duplicate name",
			descs: []Descriptor{
				{Name: "creatinine", Max: 20},
				{Name: "creatinine", Max: 20},
			},
			wantErr: ErrDuplicateVariable,
		},
		{
			name: "missing dependency",
			descs: []Descriptor{
				{Name: "egfr", Max: 200, Derived: true, Dependencies: []string{"creatinine"}},
			},
			wantErr: ErrMissingDependency,
		},
		{
			name: "dependency cycle",
			descs: []Descriptor{
				{Name: "a", Max: 1, Derived: true, Dependencies: []string{"b"}},
				{Name: "b", Max: 1, Derived: true, Dependencies: []string{"a"}},
			},
			wantErr: ErrDependencyCycle,
		},
		{
			name:    "inverted range",
			descs:   []Descriptor{{Name: "x", Min: 10, Max: 1}},
			wantErr: ErrInvalidRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.descs)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, len(tt.descs), c.Len())
		})
	}
}

func TestLoad(t *testing.T) {
	content := `
variables:
  - name: creatinine
    type: float
    min: 0.1
    max: 20.0
    policy: carry
  - name: sodium
    type: float
    min: 100
    max: 180
    policy: carry
  - name: age
    type: int
    min: 0
    max: 43830
    policy: unchanged
  - name: egfr
    type: float
    min: 0
    max: 250
    policy: invalidate
    derived: true
    depends: [creatinine, age]
`

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())
	assert.Equal(t, []string{"creatinine", "sodium", "age", "egfr"}, c.Names())

	d, ok := c.Lookup("egfr")
	require.True(t, ok)
	assert.True(t, d.Derived)
	assert.Equal(t, PolicyInvalidate, d.Policy)
	assert.Equal(t, []string{"creatinine", "age"}, c.Dependencies("egfr"))
	assert.ElementsMatch(t, []string{"creatinine", "age"}, c.AllDependencies("egfr"))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("variables: []\n"), 0o600))
	_, err = Load(empty)
	require.ErrorIs(t, err, ErrEmptyCatalog)

	badPolicy := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPolicy, []byte("variables:\n  - name: x\n    policy: hold\n"), 0o600))
	_, err = Load(badPolicy)
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestDescriptorClip(t *testing.T) {
	d := Descriptor{Name: "sodium", Min: 100, Max: 180}

	assert.Equal(t, 100.0, d.Clip(80))
	assert.Equal(t, 180.0, d.Clip(200))
	assert.Equal(t, 140.0, d.Clip(140))
	assert.True(t, d.InRange(140))
	assert.False(t, d.InRange(99))
}
