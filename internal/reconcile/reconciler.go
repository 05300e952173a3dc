package reconcile

import (
	"sort"

	"github.com/temirov/treediff/internal/shared"
)

// Record is the minimal projection of a commit needed for classification.
type Record struct {
	Tree       shared.Tree
	Hash       string
	Identifier string
}

// Key returns the record key.
func (record Record) Key() shared.RecordKey {
	return shared.RecordKey{Tree: record.Tree, Hash: record.Hash}
}

// ClassificationUpdate assigns a classification to one record.
type ClassificationUpdate struct {
	Key            shared.RecordKey
	Classification shared.Classification
}

// Counts summarizes a reconciliation.
type Counts struct {
	ReferenceIdentifiers  int
	DerivativeIdentifiers int
	Shared                int
	ReferenceOnly         int
	DerivativeOnly        int
	Classified            map[shared.Classification]int
}

// Result holds the identifier sets, per-record classification, and sibling groups.
type Result struct {
	Shared          []string
	ReferenceOnly   []string
	DerivativeOnly  []string
	Classifications map[shared.RecordKey]shared.Classification
	Groups          map[string][]shared.RecordKey
	Counts          Counts
	identifierByKey map[shared.RecordKey]string
}

// Reconcile partitions identifiers into shared, reference-only, and derivative-only sets and
// tags every record. Records without an identifier take their own tree's exclusive tag.
// Duplicate keys collapse to the last occurrence.
func Reconcile(records []Record) Result {
	records = deduplicate(records)

	referenceIdentifiers := make(map[string]struct{})
	derivativeIdentifiers := make(map[string]struct{})
	for _, record := range records {
		if len(record.Identifier) == 0 {
			continue
		}
		switch record.Tree {
		case shared.TreeReference:
			referenceIdentifiers[record.Identifier] = struct{}{}
		case shared.TreeDerivative:
			derivativeIdentifiers[record.Identifier] = struct{}{}
		}
	}

	result := Result{
		Shared:          intersection(referenceIdentifiers, derivativeIdentifiers),
		ReferenceOnly:   difference(referenceIdentifiers, derivativeIdentifiers),
		DerivativeOnly:  difference(derivativeIdentifiers, referenceIdentifiers),
		Classifications: make(map[shared.RecordKey]shared.Classification, len(records)),
		Groups:          make(map[string][]shared.RecordKey),
		identifierByKey: make(map[shared.RecordKey]string),
	}

	sharedIdentifiers := make(map[string]struct{}, len(result.Shared))
	for _, identifier := range result.Shared {
		sharedIdentifiers[identifier] = struct{}{}
	}

	for _, record := range records {
		classification := shared.OnlyClassification(record.Tree)
		if len(record.Identifier) > 0 {
			if _, isShared := sharedIdentifiers[record.Identifier]; isShared {
				classification = shared.ClassificationShared
			}
			result.Groups[record.Identifier] = append(result.Groups[record.Identifier], record.Key())
			result.identifierByKey[record.Key()] = record.Identifier
		}
		result.Classifications[record.Key()] = classification
	}

	classified := make(map[shared.Classification]int)
	for _, classification := range result.Classifications {
		classified[classification]++
	}

	for identifier := range result.Groups {
		sortKeys(result.Groups[identifier])
	}

	result.Counts = Counts{
		ReferenceIdentifiers:  len(referenceIdentifiers),
		DerivativeIdentifiers: len(derivativeIdentifiers),
		Shared:                len(result.Shared),
		ReferenceOnly:         len(result.ReferenceOnly),
		DerivativeOnly:        len(result.DerivativeOnly),
		Classified:            classified,
	}
	return result
}

// Siblings returns the other records sharing the key's identifier, across both trees.
func (result Result) Siblings(key shared.RecordKey) []shared.RecordKey {
	identifier, known := result.identifierByKey[key]
	if !known {
		return nil
	}
	members := result.Groups[identifier]
	siblings := make([]shared.RecordKey, 0, len(members))
	for _, member := range members {
		if member != key {
			siblings = append(siblings, member)
		}
	}
	return siblings
}

// Updates lists the classification of every record in a stable order.
func (result Result) Updates() []ClassificationUpdate {
	updates := make([]ClassificationUpdate, 0, len(result.Classifications))
	for key, classification := range result.Classifications {
		updates = append(updates, ClassificationUpdate{Key: key, Classification: classification})
	}
	sort.Slice(updates, func(left int, right int) bool {
		return lessKey(updates[left].Key, updates[right].Key)
	})
	return updates
}

func deduplicate(records []Record) []Record {
	positions := make(map[shared.RecordKey]int, len(records))
	unique := make([]Record, 0, len(records))
	for _, record := range records {
		if position, seen := positions[record.Key()]; seen {
			unique[position] = record
			continue
		}
		positions[record.Key()] = len(unique)
		unique = append(unique, record)
	}
	return unique
}

func intersection(left map[string]struct{}, right map[string]struct{}) []string {
	values := make([]string, 0)
	for identifier := range left {
		if _, present := right[identifier]; present {
			values = append(values, identifier)
		}
	}
	sort.Strings(values)
	return values
}

func difference(left map[string]struct{}, right map[string]struct{}) []string {
	values := make([]string, 0)
	for identifier := range left {
		if _, present := right[identifier]; !present {
			values = append(values, identifier)
		}
	}
	sort.Strings(values)
	return values
}

func sortKeys(keys []shared.RecordKey) {
	sort.Slice(keys, func(left int, right int) bool {
		return lessKey(keys[left], keys[right])
	})
}

func lessKey(left shared.RecordKey, right shared.RecordKey) bool {
	if left.Tree != right.Tree {
		return left.Tree == shared.TreeReference
	}
	return left.Hash < right.Hash
}
