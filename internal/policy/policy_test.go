package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed("Homebrew"))
	assert.False(t, Allowed("Gtk"))
	assert.False(t, Allowed("SomeRegularPackage"))
}

func TestDenied(t *testing.T) {
	assert.True(t, Denied("Gtk"))
	assert.False(t, Denied("Homebrew"))
	assert.False(t, Denied("SomeRegularPackage"))
}

func TestListsAreDisjoint(t *testing.T) {
	for name := range allowList {
		assert.False(t, Denied(name), "%s is on both lists", name)
	}
}
