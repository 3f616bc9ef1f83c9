package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSortsAndDedupes(t *testing.T) {
	reg := New([]Region{
		{Name: "Thiès", Code: "TH"},
		{Name: "Dakar", Code: "DK"},
		{Name: "Dakar", Code: "XX"},
		{Name: ""},
	})

	assert.Equal(t, []string{"Dakar", "Thiès"}, reg.Names())
	got, ok := reg.Lookup("Dakar")
	require.True(t, ok)
	assert.Equal(t, "DK", got.Code)
}

func TestLookupIsCaseSensitive(t *testing.T) {
	reg := New(Default)

	_, ok := reg.Lookup("dakar")
	assert.False(t, ok)
	_, ok = reg.Lookup("Kédougou")
	assert.True(t, ok)
}

func TestListReturnsCopy(t *testing.T) {
	reg := New(Default)
	list := reg.List()
	list[0].Name = "mutated"

	assert.NotEqual(t, "mutated", reg.List()[0].Name)
	assert.Len(t, list, 14)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, UnknownRegion, DisplayName(""))
	assert.Equal(t, "Atlantis", DisplayName("Atlantis"))
}
