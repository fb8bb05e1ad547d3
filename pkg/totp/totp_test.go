package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret is the RFC 6238 reference secret "12345678901234567890" in base32.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestComputeRFCVectors(t *testing.T) {
	// RFC 6238 Appendix B vectors (SHA-1), truncated to six digits.
	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			code, err := Compute(rfcSecret, time.Unix(tt.unix, 0).UTC())
			require.NoError(t, err)
			assert.Equal(t, tt.want, code.Value)
			assert.Len(t, code.Value, Digits)
		})
	}
}

func TestComputeSecretNormalization(t *testing.T) {
	want, err := Compute(rfcSecret, time.Unix(59, 0))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
	}{
		{"lowercase", "gezdgnbvgy3tqojqgezdgnbvgy3tqojq"},
		{"grouped with spaces", "GEZD GNBV GY3T QOJQ GEZD GNBV GY3T QOJQ"},
		{"grouped with dashes", "GEZD-GNBV-GY3T-QOJQ-GEZD-GNBV-GY3T-QOJQ"},
		{"trailing padding", rfcSecret + "===="},
		{"surrounding whitespace", "  " + rfcSecret + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := Compute(tt.secret, time.Unix(59, 0))
			require.NoError(t, err)
			assert.Equal(t, want.Value, code.Value)
		})
	}
}

func TestComputeInvalidSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"padding only", "===="},
		{"not base32", "totally!invalid@secret"},
		{"digit outside alphabet", "GEZD1NBV"}, // '1' is not in RFC 4648 base32
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.secret, time.Unix(59, 0))
			assert.ErrorIs(t, err, ErrInvalidSecret)

			assert.ErrorIs(t, Validate(tt.secret), ErrInvalidSecret)
		})
	}
}

func TestValidateAcceptsGoodSecret(t *testing.T) {
	assert.NoError(t, Validate(rfcSecret))
	assert.NoError(t, Validate("jbswy3dpehpk3pxp"))
}

func TestRemainingSeconds(t *testing.T) {
	tests := []struct {
		name string
		unix int64
		want int
	}{
		{"step start", 0, 30},
		{"mid step", 15, 15},
		{"last second", 29, 1},
		{"next boundary", 30, 30},
		{"arbitrary", 1111111109, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := Compute(rfcSecret, time.Unix(tt.unix, 0))
			require.NoError(t, err)
			assert.Equal(t, tt.want, code.RemainingSeconds)
		})
	}
}

func TestCodeStableWithinStep(t *testing.T) {
	a, err := Compute(rfcSecret, time.Unix(90, 0))
	require.NoError(t, err)
	b, err := Compute(rfcSecret, time.Unix(119, 0))
	require.NoError(t, err)
	c, err := Compute(rfcSecret, time.Unix(120, 0))
	require.NoError(t, err)

	assert.Equal(t, a.Value, b.Value, "codes inside one step must match")
	assert.NotEqual(t, b.Value, c.Value, "crossing a step boundary must change the code")
}
