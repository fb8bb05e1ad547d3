package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetParser(t *testing.T) {
	for _, source := range []Source{SourceNative, SourceBitwarden, SourceLastPass, SourceChrome} {
		t.Run(string(source), func(t *testing.T) {
			p, err := GetParser(source)
			require.NoError(t, err)
			assert.Equal(t, source, p.Source())
		})
	}

	_, err := GetParser(Source("keepass"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported import source")
}

func TestValidSources(t *testing.T) {
	sources := ValidSources()
	assert.Equal(t, []string{"passctl", "bitwarden", "lastpass", "chrome"}, sources)
}

func TestNormalize(t *testing.T) {
	// NFD "é" (e + combining acute) becomes the NFC composed form.
	decomposed := "café"
	composed := "café"
	assert.Equal(t, composed, Normalize(decomposed))
	assert.Equal(t, "plain", Normalize("  plain\n"))
	assert.Equal(t, "", Normalize("   "))
}

func TestFallbackSiteName(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		counter int
		want    string
	}{
		{"https URL", "https://github.com/login", 1, "github.com"},
		{"strips www", "https://www.example.com", 1, "example.com"},
		{"strips port", "http://example.com:8443/x", 1, "example.com"},
		{"scheme-less", "accounts.google.com/signin", 1, "accounts.google.com"},
		{"empty URL", "", 3, "imported-item-3"},
		{"whitespace URL", "   ", 7, "imported-item-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FallbackSiteName(tt.url, tt.counter))
		})
	}
}

func TestDecodeHTMLEntities(t *testing.T) {
	in := "Tom &amp; Jerry &lt;dev&gt; say &quot;hi&quot; &amp; it&#39;s fine &apos;ok&apos;"
	want := `Tom & Jerry <dev> say "hi" & it's fine 'ok'`
	assert.Equal(t, want, DecodeHTMLEntities(in))
}

func TestSecretFromOTPAuth(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"raw base32 passes through", "JBSWY3DPEHPK3PXP", "JBSWY3DPEHPK3PXP", true},
		{"otpauth URI", "otpauth://totp/GitHub:user?secret=JBSWY3DPEHPK3PXP&issuer=GitHub", "JBSWY3DPEHPK3PXP", true},
		{"uppercase scheme", "OTPAUTH://totp/x?secret=AAAA", "AAAA", true},
		{"URI without secret", "otpauth://totp/GitHub:user?issuer=GitHub", "", false},
		{"unparseable URI", "otpauth://%zz", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := secretFromOTPAuth(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
