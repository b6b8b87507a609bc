package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const (
	invalidRecordIdentifierMessageConstant  = "record identifier must be a positive integer"
	invalidRecordIdentifierTemplateConstant = "%w: %q"
	maximumExactIntegerConstant             = 1 << 53
)

// ErrInvalidRecordID indicates a record identifier that is not a positive integer.
var ErrInvalidRecordID = errors.New(invalidRecordIdentifierMessageConstant)

// RecordID identifies a record within one collection.
type RecordID int

// ParseRecordID converts the decimal string form of an identifier.
func ParseRecordID(value string) (RecordID, error) {
	parsedValue, parseError := strconv.Atoi(strings.TrimSpace(value))
	if parseError != nil || parsedValue <= 0 {
		return 0, fmt.Errorf(invalidRecordIdentifierTemplateConstant, ErrInvalidRecordID, value)
	}
	return RecordID(parsedValue), nil
}

// String renders the identifier the way it is stored on disk.
func (identifier RecordID) String() string {
	return strconv.Itoa(int(identifier))
}

// Record is an opaque mapping from field names to JSON values.
type Record map[string]any

// Clone returns a deep copy of the record.
func (record Record) Clone() Record {
	if record == nil {
		return nil
	}
	cloned := make(Record, len(record))
	for fieldName, fieldValue := range record {
		cloned[fieldName] = cloneValue(fieldValue)
	}
	return cloned
}

// Equal reports structural equality of the canonical JSON forms. Numbers
// compare by value, so 7 and 7.0 are equal.
func (record Record) Equal(other Record) bool {
	leftEncoding, leftError := canonicalRecordBytes(record)
	rightEncoding, rightError := canonicalRecordBytes(other)
	if leftError != nil || rightError != nil {
		return false
	}
	return bytes.Equal(leftEncoding, rightEncoding)
}

// RecordMap holds every record of one snapshot keyed by identifier.
type RecordMap map[RecordID]Record

// Clone returns a deep copy of the map.
func (records RecordMap) Clone() RecordMap {
	cloned := make(RecordMap, len(records))
	for identifier, record := range records {
		cloned[identifier] = record.Clone()
	}
	return cloned
}

// SortedIDs lists identifiers in ascending numeric order.
func (records RecordMap) SortedIDs() []RecordID {
	identifiers := make([]RecordID, 0, len(records))
	for identifier := range records {
		identifiers = append(identifiers, identifier)
	}
	sort.Slice(identifiers, func(left, right int) bool { return identifiers[left] < identifiers[right] })
	return identifiers
}

// MaxID returns the largest identifier or zero for an empty map.
func (records RecordMap) MaxID() RecordID {
	var maximum RecordID
	for identifier := range records {
		if identifier > maximum {
			maximum = identifier
		}
	}
	return maximum
}

// Equal reports whether both maps hold the same identifiers with structurally equal records.
func (records RecordMap) Equal(other RecordMap) bool {
	if len(records) != len(other) {
		return false
	}
	for identifier, record := range records {
		otherRecord, exists := other[identifier]
		if !exists || !record.Equal(otherRecord) {
			return false
		}
	}
	return true
}

func canonicalRecordBytes(record Record) ([]byte, error) {
	if record == nil {
		record = Record{}
	}
	encoded, encodeError := json.Marshal(record)
	if encodeError != nil {
		return nil, encodeError
	}
	var normalized any
	if decodeError := decodeJSON(encoded, &normalized); decodeError != nil {
		return nil, decodeError
	}
	return json.Marshal(canonicalNumbers(normalized))
}

// canonicalNumbers rewrites fractional and exponent literals to one textual
// form per value: integral values as plain integers, the rest as the shortest
// float64 form. Integer literals stay exact.
func canonicalNumbers(value any) any {
	switch typedValue := value.(type) {
	case map[string]any:
		for key, nestedValue := range typedValue {
			typedValue[key] = canonicalNumbers(nestedValue)
		}
		return typedValue
	case []any:
		for index, nestedValue := range typedValue {
			typedValue[index] = canonicalNumbers(nestedValue)
		}
		return typedValue
	case json.Number:
		return canonicalNumber(typedValue)
	default:
		return typedValue
	}
}

func canonicalNumber(number json.Number) json.Number {
	text := number.String()
	if !strings.ContainsAny(text, ".eE") {
		return number
	}
	floatValue, parseError := strconv.ParseFloat(text, 64)
	if parseError != nil {
		return number
	}
	if math.Trunc(floatValue) == floatValue && math.Abs(floatValue) < maximumExactIntegerConstant {
		return json.Number(strconv.FormatInt(int64(floatValue), 10))
	}
	return json.Number(strconv.FormatFloat(floatValue, 'g', -1, 64))
}

func decodeJSON(payload []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	return decoder.Decode(target)
}

func cloneValue(value any) any {
	switch typedValue := value.(type) {
	case map[string]any:
		cloned := make(map[string]any, len(typedValue))
		for key, nestedValue := range typedValue {
			cloned[key] = cloneValue(nestedValue)
		}
		return cloned
	case Record:
		return typedValue.Clone()
	case []any:
		cloned := make([]any, len(typedValue))
		for index, nestedValue := range typedValue {
			cloned[index] = cloneValue(nestedValue)
		}
		return cloned
	case []string:
		return append([]string(nil), typedValue...)
	default:
		return typedValue
	}
}
