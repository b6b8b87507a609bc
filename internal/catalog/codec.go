package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	snapshotTableKeyConstant               = "_default"
	snapshotIndentConstant                 = "  "
	emptySnapshotMessageConstant           = "snapshot payload is empty"
	recordEncodingErrorTemplateConstant    = "failed to encode record %s: %w"
	snapshotDecodingErrorTemplateConstant  = "failed to decode snapshot: %w"
	recordDecodingErrorTemplateConstant    = "failed to decode record %q: %w"
	nullRecordMessageTemplateConstant      = "record %q is not an object"
	duplicateRecordMessageTemplateConstant = "%w: %q and %q"
)

// ErrEmptySnapshot indicates a zero-length snapshot payload.
var ErrEmptySnapshot = errors.New(emptySnapshotMessageConstant)

// ErrDuplicateRecordID indicates two table keys naming the same identifier, such as "1" and "01".
var ErrDuplicateRecordID = errors.New("snapshot holds the same record identifier twice")

type snapshotDocument struct {
	Table map[string]json.RawMessage `json:"_default"`
}

// EncodeRecordMap produces the canonical snapshot document: a single
// "_default" table whose records are ordered by ascending numeric identifier
// and whose fields are ordered by name.
func EncodeRecordMap(records RecordMap) ([]byte, error) {
	compact, encodeError := encodeCompact(records)
	if encodeError != nil {
		return nil, encodeError
	}
	var indented bytes.Buffer
	if indentError := json.Indent(&indented, compact, "", snapshotIndentConstant); indentError != nil {
		return nil, indentError
	}
	indented.WriteByte('\n')
	return indented.Bytes(), nil
}

// DecodeRecordMap parses a snapshot document. A document without the table key
// decodes to an empty map.
func DecodeRecordMap(payload []byte) (RecordMap, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, ErrEmptySnapshot
	}

	var document snapshotDocument
	if decodeError := json.Unmarshal(payload, &document); decodeError != nil {
		return nil, fmt.Errorf(snapshotDecodingErrorTemplateConstant, decodeError)
	}

	records := make(RecordMap, len(document.Table))
	rawIdentifiers := make(map[RecordID]string, len(document.Table))
	for rawIdentifier, rawRecord := range document.Table {
		identifier, identifierError := ParseRecordID(rawIdentifier)
		if identifierError != nil {
			return nil, identifierError
		}
		if previousIdentifier, duplicated := rawIdentifiers[identifier]; duplicated {
			return nil, fmt.Errorf(duplicateRecordMessageTemplateConstant, ErrDuplicateRecordID, previousIdentifier, rawIdentifier)
		}
		rawIdentifiers[identifier] = rawIdentifier
		var record Record
		if decodeError := decodeJSON(rawRecord, &record); decodeError != nil {
			return nil, fmt.Errorf(recordDecodingErrorTemplateConstant, rawIdentifier, decodeError)
		}
		if record == nil {
			return nil, fmt.Errorf(nullRecordMessageTemplateConstant, rawIdentifier)
		}
		records[identifier] = record
	}
	return records, nil
}

// Fingerprint returns the SHA-256 digest of the canonical encoding.
func Fingerprint(records RecordMap) string {
	compact, encodeError := encodeCompact(records)
	if encodeError != nil {
		return ""
	}
	digest := sha256.Sum256(compact)
	return hex.EncodeToString(digest[:])
}

func encodeCompact(records RecordMap) ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteString(`{"` + snapshotTableKeyConstant + `":{`)
	for index, identifier := range records.SortedIDs() {
		if index > 0 {
			buffer.WriteByte(',')
		}
		encodedRecord, encodeError := canonicalRecordBytes(records[identifier])
		if encodeError != nil {
			return nil, fmt.Errorf(recordEncodingErrorTemplateConstant, identifier, encodeError)
		}
		buffer.WriteString(`"` + identifier.String() + `":`)
		buffer.Write(encodedRecord)
	}
	buffer.WriteString("}}")
	return buffer.Bytes(), nil
}
