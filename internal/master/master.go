// Package master loads the company reference dataset and resolves extracted
// vendor names to company codes. The master is read-only after load and safe
// to share across concurrent pipeline runs.
package master

import (
	"encoding/json"
	"os"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

// Master is the loaded company roster with a lookup index over normalized
// canonical names and aliases.
type Master struct {
	entries []model.CompanyEntry
	exact   map[string]string // normalized name -> company code
}

// Load reads the company master JSON file: an array of
// {code, name, aliases} objects.
func Load(path string) (*Master, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "master: read %s", path)
	}

	var entries []model.CompanyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "master: parse %s", path)
	}

	return New(entries), nil
}

// New builds a Master from in-memory entries.
func New(entries []model.CompanyEntry) *Master {
	m := &Master{
		entries: entries,
		exact:   make(map[string]string, len(entries)*2),
	}
	for _, e := range entries {
		m.addExact(e.Name, e.Code)
		for _, alias := range e.Aliases {
			m.addExact(alias, e.Code)
		}
	}
	return m
}

// addExact indexes one name; the first entry to claim a normalized form wins,
// keeping matches deterministic when entries collide.
func (m *Master) addExact(name, code string) {
	key := NormalizeName(name)
	if key == "" {
		return
	}
	if _, taken := m.exact[key]; !taken {
		m.exact[key] = code
	}
}

// Len returns the number of entries loaded.
func (m *Master) Len() int { return len(m.entries) }

// Entries returns the loaded roster. Callers must not mutate it.
func (m *Master) Entries() []model.CompanyEntry { return m.entries }

// Match resolves a vendor name to a company code: exact first over canonical
// names and aliases, then the best fuzzy candidate if it meets the threshold.
// Deterministic for identical inputs; no I/O. A miss is not an error — the
// caller records a warning and proceeds unmatched.
func (m *Master) Match(vendorName string, threshold float64) model.MatchResult {
	key := NormalizeName(vendorName)
	if key == "" {
		return model.MatchResult{Method: model.MatchNone}
	}

	if code, ok := m.exact[key]; ok {
		return model.MatchResult{MatchedCode: code, Method: model.MatchExact, Score: 1.0}
	}

	var bestCode string
	var bestScore float64
	for _, e := range m.entries {
		for _, candidate := range append([]string{e.Name}, e.Aliases...) {
			score := levenshtein.Similarity(key, NormalizeName(candidate), nil)
			// Strictly greater keeps the earliest entry on ties.
			if score > bestScore {
				bestScore = score
				bestCode = e.Code
			}
		}
	}

	if bestScore >= threshold {
		return model.MatchResult{MatchedCode: bestCode, Method: model.MatchFuzzy, Score: bestScore}
	}
	return model.MatchResult{Method: model.MatchNone}
}
