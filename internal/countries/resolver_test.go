package countries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKnownCode(t *testing.T) {
	r := NewResolver()

	country, ok := r.Resolve("DE")
	require.True(t, ok)
	assert.Equal(t, "DE", country.Alpha2)
	assert.Equal(t, "DEU", country.Alpha3)
	assert.Equal(t, "Germany", country.Name)
}

func TestResolveUnknownCode(t *testing.T) {
	r := NewResolver()

	_, ok := r.Resolve("XX")
	assert.False(t, ok)

	_, ok = r.Resolve("")
	assert.False(t, ok)
}
