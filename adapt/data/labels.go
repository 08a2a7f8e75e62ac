// Package data loads pre-featurized NER corpora and serves them to the
// training loop as restartable micro-batch passes.
package data

import "fmt"

// OutsideTag is the BIO tag for tokens outside any entity.
const OutsideTag = "O"

// LegalEntities are the entity types of the legal judgement corpus.
var LegalEntities = []string{
	"COURT", "PETITIONER", "RESPONDENT", "JUDGE", "DATE", "ORG", "GPE",
	"STATUTE", "PROVISION", "PRECEDENT", "CASE_NUMBER", "WITNESS",
	"OTHER_PERSON", "LAWYER",
}

// DefenseEntities are the entity types of the shifted government/defense corpus.
var DefenseEntities = []string{
	"CommsIdentifier", "DocumentReference", "Frequency", "Location",
	"MilitaryPlatform", "Money", "Nationality", "Organisation", "Person",
	"Quantity", "Temporal", "Url", "Vehicle", "Weapon",
}

// LabelSet maps BIO tags to class ids. Id 0 is OutsideTag, followed by every
// B- tag and then every I- tag, in entity order.
type LabelSet struct {
	Name  string
	Tags  []string
	index map[string]int
}

// NewBIOLabelSet expands entity types into O + B-* + I-*.
func NewBIOLabelSet(name string, entities []string) *LabelSet {
	tags := make([]string, 0, 2*len(entities)+1)
	tags = append(tags, OutsideTag)
	for _, e := range entities {
		tags = append(tags, "B-"+e)
	}
	for _, e := range entities {
		tags = append(tags, "I-"+e)
	}
	ls := &LabelSet{Name: name, Tags: tags, index: make(map[string]int, len(tags))}
	for i, t := range tags {
		ls.index[t] = i
	}
	return ls
}

// Len is the number of classes.
func (ls *LabelSet) Len() int {
	return len(ls.Tags)
}

// ID returns the class id of tag.
func (ls *LabelSet) ID(tag string) (int, bool) {
	id, ok := ls.index[tag]
	return id, ok
}

// labelSets is the registry of built-in label sets.
var labelSets = map[string][]string{
	"legal":   LegalEntities,
	"defense": DefenseEntities,
}

// ValidLabelSets is the set of recognized label set names.
var ValidLabelSets = map[string]bool{"legal": true, "defense": true}

// LabelSetByName returns a built-in label set.
func LabelSetByName(name string) (*LabelSet, error) {
	entities, ok := labelSets[name]
	if !ok {
		return nil, fmt.Errorf("unknown label set %q; valid: legal, defense", name)
	}
	return NewBIOLabelSet(name, entities), nil
}
