package data

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/legal-ner/ner-adapt/adapt"
)

// maxLineBytes bounds one JSONL record (one sentence).
const maxLineBytes = 16 << 20

// Sentence is one pre-featurized sentence: a feature row and a class id per token.
type Sentence struct {
	Features [][]float64
	Labels   []int
}

// record is one JSONL line. An empty tag marks a token excluded from loss
// and accuracy (e.g. a sub-word continuation).
type record struct {
	Features [][]float64 `json:"features"`
	Tags     []string    `json:"tags"`
}

// LoadJSONL reads one sentence per line. Every token must have exactly
// numFeatures features and a tag known to labels (or the empty tag).
func LoadJSONL(path string, labels *LabelSet, numFeatures int) ([]Sentence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	defer f.Close()

	var sentences []Sentence
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		s, err := toSentence(rec, labels, numFeatures)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		sentences = append(sentences, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading dataset %s: %w", path, err)
	}
	return sentences, nil
}

func toSentence(rec record, labels *LabelSet, numFeatures int) (Sentence, error) {
	if len(rec.Features) == 0 {
		return Sentence{}, fmt.Errorf("sentence has no tokens")
	}
	if len(rec.Tags) != len(rec.Features) {
		return Sentence{}, fmt.Errorf("%d tokens but %d tags", len(rec.Features), len(rec.Tags))
	}
	s := Sentence{Features: rec.Features, Labels: make([]int, len(rec.Tags))}
	for i, row := range rec.Features {
		if len(row) != numFeatures {
			return Sentence{}, fmt.Errorf("token %d has %d features, want %d", i, len(row), numFeatures)
		}
		tag := rec.Tags[i]
		if tag == "" {
			s.Labels[i] = adapt.IgnoreLabel
			continue
		}
		id, ok := labels.ID(tag)
		if !ok {
			return Sentence{}, fmt.Errorf("token %d: tag %q not in label set %q", i, tag, labels.Name)
		}
		s.Labels[i] = id
	}
	return s, nil
}
