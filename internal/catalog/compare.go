package catalog

import (
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const comparedValueKeyConstant = "value"

// FieldChangeKind describes how one field differs between two records.
type FieldChangeKind string

// Field change kinds.
const (
	FieldAdded    FieldChangeKind = FieldChangeKind("added")
	FieldRemoved  FieldChangeKind = FieldChangeKind("removed")
	FieldModified FieldChangeKind = FieldChangeKind("modified")
)

// TextOperation labels a fragment of a character-level text diff.
type TextOperation string

// Text diff operations.
const (
	TextEqual  TextOperation = TextOperation("equal")
	TextInsert TextOperation = TextOperation("insert")
	TextDelete TextOperation = TextOperation("delete")
)

// TextFragment is one run of a character-level diff.
type TextFragment struct {
	Operation TextOperation
	Text      string
}

// FieldChange captures the difference of a single field.
type FieldChange struct {
	Field     string
	Kind      FieldChangeKind
	Before    any
	After     any
	Fragments []TextFragment
}

var textOperationMapping = map[diffmatchpatch.Operation]TextOperation{
	diffmatchpatch.DiffEqual:  TextEqual,
	diffmatchpatch.DiffInsert: TextInsert,
	diffmatchpatch.DiffDelete: TextDelete,
}

// CompareFields lists the fields that differ from before to after, ordered by
// field name. String values that changed carry a semantic character diff.
func CompareFields(before Record, after Record) []FieldChange {
	fieldNames := make(map[string]struct{}, len(before)+len(after))
	for fieldName := range before {
		fieldNames[fieldName] = struct{}{}
	}
	for fieldName := range after {
		fieldNames[fieldName] = struct{}{}
	}

	sortedFieldNames := make([]string, 0, len(fieldNames))
	for fieldName := range fieldNames {
		sortedFieldNames = append(sortedFieldNames, fieldName)
	}
	sort.Strings(sortedFieldNames)

	changes := make([]FieldChange, 0)
	for _, fieldName := range sortedFieldNames {
		beforeValue, beforeExists := before[fieldName]
		afterValue, afterExists := after[fieldName]
		switch {
		case beforeExists && !afterExists:
			changes = append(changes, FieldChange{Field: fieldName, Kind: FieldRemoved, Before: beforeValue})
		case !beforeExists && afterExists:
			changes = append(changes, FieldChange{Field: fieldName, Kind: FieldAdded, After: afterValue})
		case !valuesEqual(beforeValue, afterValue):
			change := FieldChange{Field: fieldName, Kind: FieldModified, Before: beforeValue, After: afterValue}
			beforeText, beforeIsText := beforeValue.(string)
			afterText, afterIsText := afterValue.(string)
			if beforeIsText && afterIsText {
				change.Fragments = diffText(beforeText, afterText)
			}
			changes = append(changes, change)
		}
	}
	return changes
}

func diffText(before string, after string) []TextFragment {
	matcher := diffmatchpatch.New()
	differences := matcher.DiffMain(before, after, true)
	differences = matcher.DiffCleanupSemantic(differences)

	fragments := make([]TextFragment, 0, len(differences))
	for _, difference := range differences {
		fragments = append(fragments, TextFragment{Operation: textOperationMapping[difference.Type], Text: difference.Text})
	}
	return fragments
}

func valuesEqual(left any, right any) bool {
	return Record{comparedValueKeyConstant: left}.Equal(Record{comparedValueKeyConstant: right})
}
