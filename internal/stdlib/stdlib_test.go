package stdlib

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_Deterministic(t *testing.T) {
	assert.Equal(t, ID("Random"), ID("Random"))
	assert.NotEqual(t, ID("Random"), ID("Test"))
	assert.Equal(t, uuid.NewSHA1(Namespace, []byte("Random")), ID("Random"))
}

func TestPackages_SortedAndStdlibShaped(t *testing.T) {
	pkgs := Packages()
	require.NotEmpty(t, pkgs)

	assert.True(t, sort.SliceIsSorted(pkgs, func(i, j int) bool {
		return pkgs[i].Name < pkgs[j].Name
	}))
	for _, p := range pkgs {
		assert.True(t, p.IsStdlib(), p.Name)
		assert.Equal(t, ID(p.Name), p.ID)
		assert.Empty(t, p.MetadataPath)
	}
}

func TestDependencies_Closed(t *testing.T) {
	deps := Dependencies()
	for name, ds := range deps {
		for _, dep := range ds {
			_, ok := deps[dep]
			assert.True(t, ok, "%s depends on unknown builtin %s", name, dep)
			assert.NotEqual(t, name, dep, "%s depends on itself", name)
		}
	}
}

func TestDependencies_Acyclic(t *testing.T) {
	deps := Dependencies()

	const (
		white = iota
		gray
		black
	)
	color := map[string]int{}
	var visit func(string) bool
	visit = func(name string) bool {
		color[name] = gray
		for _, dep := range deps[name] {
			switch color[dep] {
			case gray:
				return false
			case white:
				if !visit(dep) {
					return false
				}
			}
		}
		color[name] = black
		return true
	}
	for name := range deps {
		if color[name] == white {
			assert.True(t, visit(name), "cycle through %s", name)
		}
	}
}

func TestDependencies_ReturnsCopy(t *testing.T) {
	first := Dependencies()
	first["Dates"] = append(first["Dates"], "Test")
	second := Dependencies()
	assert.NotContains(t, second["Dates"], "Test")
}
