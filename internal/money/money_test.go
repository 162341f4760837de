package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	d, err := Parse("12.345")
	require.NoError(t, err)
	assert.Equal(t, "12.35", Format(d))

	_, err = Parse("twelve")
	assert.ErrorIs(t, err, ErrInvalidMoney)
}

func TestParsePositive(t *testing.T) {
	_, err := ParsePositive("0.00")
	assert.ErrorIs(t, err, ErrInvalidMoney)

	_, err = ParsePositive("-3.50")
	assert.ErrorIs(t, err, ErrInvalidMoney)

	d, err := ParsePositive("3.50")
	require.NoError(t, err)
	assert.Equal(t, "3.50", Format(d))
}
