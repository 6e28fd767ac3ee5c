package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresISOCurrency(t *testing.T) {
	base := NewMembershipTypeDefinition("Social", ScopeGlobal, nil, AgeBounds{},
		Fee{BaseAmount: MustParseAmount("12.50"), Currency: "GBP", Frequency: FrequencyAnnual})
	require.NoError(t, base.Validate())

	for _, code := range []string{"", "  ", "GB", "POUND", "ZZZ", "XXX"} {
		def := base
		def.Fee.Currency = code
		assert.ErrorIs(t, def.Validate(), ErrInvalidInput, "currency %q", code)
	}

	lower := base
	lower.Fee.Currency = "eur"
	assert.NoError(t, lower.Validate())
}

func TestParseCurrencyNormalises(t *testing.T) {
	got, err := ParseCurrency(" gbp ")
	require.NoError(t, err)
	assert.Equal(t, "GBP", got)
}
