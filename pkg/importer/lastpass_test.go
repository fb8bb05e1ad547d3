package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lastPassHeader = "url,username,password,totp,extra,name,grouping,fav\n"

func TestLastPassParserBasicRow(t *testing.T) {
	csvData := lastPassHeader +
		"https://github.com,octocat,s3cret,JBSWY3DPEHPK3PXP,work account,GitHub,Work\\Dev,1\n"

	p := &LastPassParser{}
	result, err := p.Parse([]byte(csvData))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.Skipped)

	e := result.Entries[0]
	assert.Equal(t, "GitHub", e.SiteName)
	assert.Equal(t, "https://github.com", e.URL)
	assert.Equal(t, "octocat", e.Username)
	assert.Equal(t, "s3cret", e.Password)
	assert.Equal(t, "work account", e.Notes)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", e.TOTPSecret)
	assert.True(t, e.Favorite)
	assert.Equal(t, map[string]string{"folder": "Work\\Dev"}, e.CustomFields)
}

func TestLastPassParserDecodesHTMLEntities(t *testing.T) {
	csvData := lastPassHeader +
		"https://example.com,user,p&amp;ss&quot;word,,,A &amp; B,,0\n"

	p := &LastPassParser{}
	result, err := p.Parse([]byte(csvData))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)

	e := result.Entries[0]
	assert.Equal(t, "A & B", e.SiteName)
	assert.Equal(t, `p&ss"word`, e.Password)
}

func TestLastPassParserSkipsSecureNotes(t *testing.T) {
	csvData := lastPassHeader +
		"http://sn,,,,\"NoteType:Generic\nsome note body\",My Note,,0\n" +
		"https://example.com,user,pass,,,Example,,0\n"

	p := &LastPassParser{}
	result, err := p.Parse([]byte(csvData))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "Example", result.Entries[0].SiteName)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "My Note", result.Skipped[0].Name)
	assert.Equal(t, "secure notes carry no login credentials", result.Skipped[0].Reason)
}

func TestLastPassParserSkipsRowsWithoutCredentials(t *testing.T) {
	csvData := lastPassHeader +
		"https://example.com,user,,,,No Password,,0\n"

	p := &LastPassParser{}
	result, err := p.Parse([]byte(csvData))
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "missing username or password", result.Skipped[0].Reason)
}

func TestLastPassParserStripsBOM(t *testing.T) {
	csvData := "\xEF\xBB\xBF" + lastPassHeader +
		"https://example.com,user,pass,,,Example,,0\n"

	p := &LastPassParser{}
	result, err := p.Parse([]byte(csvData))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
}

func TestLastPassParserReorderedColumns(t *testing.T) {
	csvData := "name,url,username,password,totp,extra,grouping,fav\n" +
		"Example,https://example.com,user,pass,,,,0\n"

	p := &LastPassParser{}
	result, err := p.Parse([]byte(csvData))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "Example", result.Entries[0].SiteName)
	assert.Equal(t, "user", result.Entries[0].Username)
}

func TestLastPassParserMissingColumn(t *testing.T) {
	csvData := "url,username,totp,extra,name,grouping,fav\n"

	p := &LastPassParser{}
	_, err := p.Parse([]byte(csvData))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required column "password"`)
}

func TestLastPassParserWarnsOnShortRows(t *testing.T) {
	csvData := lastPassHeader +
		"https://example.com,user,pass\n" +
		"https://example.org,user2,pass2,,,Org,,0\n"

	p := &LastPassParser{}
	result, err := p.Parse([]byte(csvData))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "Org", result.Entries[0].SiteName)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "row 2: column count mismatch")
}

func TestLastPassParserSiteNameFallback(t *testing.T) {
	csvData := lastPassHeader +
		"https://www.example.com/login,user,pass,,,,,0\n"

	p := &LastPassParser{}
	result, err := p.Parse([]byte(csvData))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "example.com", result.Entries[0].SiteName)
}
