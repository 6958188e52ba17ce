package corpus

import (
	"log/slog"

	"talk-to-krishna/internal/textutil"
)

// Mapping links modern trigger terms to passage ids in priority order.
type Mapping struct {
	Triggers []string
	Passages []string
}

type compiledMapping struct {
	triggers *textutil.PhraseSet
	indices  []int // passage positions, priority order
}

// mappingTable is the immutable curated lookup owned by a Store.
type mappingTable struct {
	entries []compiledMapping
	decay   float64
	floor   float64
}

func newMappingTable(mappings []Mapping, byID map[string]int, decay, floor float64) (*mappingTable, map[int][]string) {
	table := &mappingTable{decay: decay, floor: floor}
	keywords := make(map[int][]string)

	for _, m := range mappings {
		entry := compiledMapping{triggers: textutil.NewPhraseSet(m.Triggers)}
		if entry.triggers.Len() == 0 {
			continue
		}
		for _, id := range m.Passages {
			idx, ok := byID[id]
			if !ok {
				slog.Debug("curated mapping references unknown passage", "passage_id", id)
				continue
			}
			entry.indices = append(entry.indices, idx)
			keywords[idx] = append(keywords[idx], m.Triggers...)
		}
		if len(entry.indices) > 0 {
			table.entries = append(table.entries, entry)
		}
	}
	return table, keywords
}

// scores returns the best mapping score per passage for the given token
// sequences. A passage at priority position i scores max(floor, 1 - i*decay).
func (t *mappingTable) scores(n int, tokenSets ...[]string) ([]float64, []string) {
	scores := make([]float64, n)
	var matched []string
	for _, entry := range t.entries {
		var phrase textutil.Phrase
		var hit bool
		for _, tokens := range tokenSets {
			if phrase, hit = entry.triggers.Match(tokens); hit {
				break
			}
		}
		if !hit {
			continue
		}
		matched = append(matched, phrase.String())
		for pos, idx := range entry.indices {
			s := 1 - float64(pos)*t.decay
			if s < t.floor {
				s = t.floor
			}
			if s > scores[idx] {
				scores[idx] = s
			}
		}
	}
	return scores, sortedUnique(matched)
}
