package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"talk-to-krishna/internal/textutil"
)

// speakerWindow bounds how many opening tokens are searched for a speaker marker.
const speakerWindow = 8

// Dataset is the raw verse dataset: chapters keyed by number, verses keyed
// by number within each chapter.
type Dataset struct {
	Chapters map[string]map[string]RawVerse `json:"chapters"`
}

// RawVerse is one verse as it appears in the dataset file.
type RawVerse struct {
	Text            string             `json:"text"`
	MeaningEnglish  string             `json:"meaning_english"`
	MeaningHindi    string             `json:"meaning_hindi"`
	Meaning         string             `json:"meaning"`
	Emotions        map[string]float64 `json:"emotions"`
	DominantEmotion string             `json:"dominant_emotion"`
}

// SpeakerMarker maps an opening phrase of the source text to a speaker.
type SpeakerMarker struct {
	Phrase  string
	Speaker string
}

type compiledMarker struct {
	phrase  textutil.Phrase
	speaker string
}

// BuildRules control how raw verses become passages.
type BuildRules struct {
	DefaultSpeaker   string
	Markers          []SpeakerMarker
	EmotionThreshold float64
}

// ParseDataset decodes a dataset and returns it with the sha256 of data.
func ParseDataset(data []byte) (*Dataset, string, error) {
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, "", fmt.Errorf("failed to decode dataset: %w", err)
	}
	if len(ds.Chapters) == 0 {
		return nil, "", fmt.Errorf("%w: dataset has no chapters", ErrEmptyCorpus)
	}
	sum := sha256.Sum256(data)
	return &ds, hex.EncodeToString(sum[:]), nil
}

// LoadDataset reads and decodes a dataset file.
func LoadDataset(path string) (*Dataset, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	return ParseDataset(data)
}

// Passages converts the dataset into passages ordered by chapter and verse.
// Embeddings are left empty.
func (d *Dataset) Passages(rules BuildRules) ([]Passage, error) {
	markers := make([]compiledMarker, 0, len(rules.Markers))
	for _, m := range rules.Markers {
		if phrase := textutil.NewPhrase(m.Phrase); len(phrase) > 0 {
			markers = append(markers, compiledMarker{phrase: phrase, speaker: m.Speaker})
		}
	}

	var passages []Passage
	for chapterKey, verses := range d.Chapters {
		chapter, err := strconv.Atoi(chapterKey)
		if err != nil {
			return nil, fmt.Errorf("%w: chapter key %q is not a number", ErrInvalidPassage, chapterKey)
		}
		for verseKey, raw := range verses {
			verse, err := strconv.Atoi(verseKey)
			if err != nil {
				return nil, fmt.Errorf("%w: verse key %q in chapter %d is not a number", ErrInvalidPassage, verseKey, chapter)
			}

			hindi := raw.MeaningHindi
			if hindi == "" {
				hindi = raw.Meaning
			}
			translation := raw.MeaningEnglish
			if translation == "" {
				translation = hindi
			}
			id := PassageID(chapter, verse)
			if strings.TrimSpace(raw.Text) == "" || strings.TrimSpace(translation) == "" {
				return nil, fmt.Errorf("%w: %s is missing text or meaning", ErrInvalidPassage, id)
			}

			speaker := rules.DefaultSpeaker
			opening := textutil.Tokenize(raw.Text)
			if len(opening) > speakerWindow {
				opening = opening[:speakerWindow]
			}
			for _, m := range markers {
				if m.phrase.MatchIn(opening) {
					speaker = m.speaker
					break
				}
			}

			passages = append(passages, Passage{
				ID:               id,
				Chapter:          chapter,
				Verse:            verse,
				SourceText:       strings.TrimSpace(raw.Text),
				Translation:      strings.TrimSpace(translation),
				TranslationHindi: strings.TrimSpace(hindi),
				Speaker:          speaker,
				EmotionTags:      emotionTags(raw, rules.EmotionThreshold),
			})
		}
	}

	sort.Slice(passages, func(i, j int) bool {
		return CompareIDs(passages[i].ID, passages[j].ID) < 0
	})
	return passages, nil
}

func emotionTags(raw RawVerse, threshold float64) []string {
	var tags []string
	if dominant := strings.ToLower(strings.TrimSpace(raw.DominantEmotion)); dominant != "" && dominant != "neutral" {
		tags = append(tags, dominant)
	}
	for label, strength := range raw.Emotions {
		if strength > threshold {
			tags = append(tags, strings.ToLower(strings.TrimSpace(label)))
		}
	}
	return sortedUnique(tags)
}

// EmbeddingText is the text embedded for a passage: the English meaning,
// the source text and its emotion tags.
func EmbeddingText(p Passage) string {
	parts := []string{p.Translation, p.SourceText}
	parts = append(parts, p.EmotionTags...)
	return strings.Join(parts, " ")
}
