package master

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

func testRoster() []model.CompanyEntry {
	return []model.CompanyEntry{
		{Code: "AC01", Name: "Acme Corporation", Aliases: []string{"ACME CORP"}},
		{Code: "TS02", Name: "株式会社テスト商事", Aliases: []string{"テスト商事"}},
		{Code: "YM03", Name: "山田製作所"},
	}
}

func TestMatch_ExactCanonicalName(t *testing.T) {
	m := New(testRoster())

	got := m.Match("Acme Corporation", 0.8)
	assert.Equal(t, model.MatchResult{MatchedCode: "AC01", Method: model.MatchExact, Score: 1.0}, got)
}

func TestMatch_ExactViaAlias(t *testing.T) {
	m := New(testRoster())

	got := m.Match("ACME CORP", 0.8)
	assert.Equal(t, model.MatchResult{MatchedCode: "AC01", Method: model.MatchExact, Score: 1.0}, got)
}

func TestMatch_ExactAfterNormalization(t *testing.T) {
	m := New(testRoster())

	// Legal form and width differences collapse to the same key.
	got := m.Match("（株）テスト商事", 0.8)
	assert.Equal(t, "TS02", got.MatchedCode)
	assert.Equal(t, model.MatchExact, got.Method)

	got = m.Match("acme corp.", 0.8)
	assert.Equal(t, "AC01", got.MatchedCode)
	assert.Equal(t, model.MatchExact, got.Method)
}

func TestMatch_FuzzyThresholdBoundary(t *testing.T) {
	base := strings.Repeat("a", 100)
	m := New([]model.CompanyEntry{{Code: "XX01", Name: base}})

	// 20 substitutions over 100 runes: similarity exactly 0.80 matches at
	// threshold 0.80.
	at := strings.Repeat("a", 80) + strings.Repeat("b", 20)
	got := m.Match(at, 0.8)
	assert.Equal(t, model.MatchFuzzy, got.Method)
	assert.Equal(t, "XX01", got.MatchedCode)
	assert.InDelta(t, 0.80, got.Score, 1e-9)

	// 21 substitutions: similarity 0.79 stays below the threshold.
	below := strings.Repeat("a", 79) + strings.Repeat("b", 21)
	got = m.Match(below, 0.8)
	assert.Equal(t, model.MatchNone, got.Method)
	assert.Empty(t, got.MatchedCode)
}

func TestMatch_FuzzyTypo(t *testing.T) {
	m := New(testRoster())

	got := m.Match("山田製作听", 0.8) // one OCR-confused rune
	assert.Equal(t, model.MatchFuzzy, got.Method)
	assert.Equal(t, "YM03", got.MatchedCode)
	assert.Greater(t, got.Score, 0.7)
	assert.Less(t, got.Score, 1.0)
}

func TestMatch_NoMatch(t *testing.T) {
	m := New(testRoster())

	got := m.Match("Totally Unknown LLC", 0.8)
	assert.Equal(t, model.MatchResult{Method: model.MatchNone}, got)
}

func TestMatch_EmptyName(t *testing.T) {
	m := New(testRoster())

	got := m.Match("", 0.8)
	assert.Equal(t, model.MatchNone, got.Method)
}

func TestMatch_TieKeepsEarliestEntry(t *testing.T) {
	m := New([]model.CompanyEntry{
		{Code: "FIRST", Name: "abcdefghij"},
		{Code: "SECOND", Name: "abcdefghij"},
	})

	got := m.Match("abcdefghix", 0.8)
	assert.Equal(t, model.MatchFuzzy, got.Method)
	assert.Equal(t, "FIRST", got.MatchedCode)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.json")
	data, err := json.Marshal(testRoster())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, "AC01", m.Match("Acme Corporation", 0.8).MatchedCode)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
