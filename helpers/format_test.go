package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPriceMagnitudes(t *testing.T) {
	assert.Equal(t, "64250.5", FormatPrice(64250.50))
	assert.Equal(t, "3.1416", FormatPrice(3.14159))
	assert.Equal(t, "0.023456", FormatPrice(0.0234561))
	assert.Equal(t, "0.00001234", FormatPrice(0.0000123399))
	assert.Equal(t, "-1.5", FormatPrice(-1.5))
}

func TestFormatPct(t *testing.T) {
	assert.Equal(t, "+5.32%", FormatPct(5.321))
	assert.Equal(t, "-12.00%", FormatPct(-12))
}

func TestFormatCompact(t *testing.T) {
	assert.Equal(t, "1.5B", FormatCompact(1_500_000_000))
	assert.Equal(t, "2.35M", FormatCompact(2_345_000))
	assert.Equal(t, "12K", FormatCompact(12_000))
	assert.Equal(t, "999", FormatCompact(999))
}

func TestFormatFloatTrimsZeros(t *testing.T) {
	assert.Equal(t, "1.2", FormatFloat(1.200, 4))
	assert.Equal(t, "100", FormatFloat(100.0, 2))
}
