package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewElementIDIsUniqueAndPrefixed(t *testing.T) {
	a, b := NewElementID(), NewElementID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, PrefixElement+"_"))
	require.NoError(t, Validate(a, PrefixElement))
}

func TestValidateRejectsWrongPrefix(t *testing.T) {
	id := NewTemplateID()
	err := Validate(id, PrefixElement)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected prefix")
}

func TestValidateRejectsGarbage(t *testing.T) {
	require.Error(t, Validate("not an id", PrefixElement))
}
