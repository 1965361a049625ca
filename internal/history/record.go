package history

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// idField is the member of the stored record object that carries the id.
const idField = "id"

// Record is one saved session: a quicksave or a history entry.
//
// Payload is opaque to this package. It must be a JSON object and never
// contains the "id" member; the id lives in ID and is merged into the object
// when the record is encoded.
type Record struct {
	ID      int
	Payload json.RawMessage
}

// EncodeRecord serializes r into the string stored under RecordKey(r.ID).
// Object members are emitted in sorted order, so equal records always encode
// to equal strings.
func EncodeRecord(r Record) (string, error) {
	if r.ID < 0 {
		return "", fmt.Errorf("record id %d is negative", r.ID)
	}
	fields, err := payloadFields(r.Payload)
	if err != nil {
		return "", err
	}
	fields[idField] = json.RawMessage(fmt.Sprint(r.ID))
	b, err := marshalObject(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record %d: %w", r.ID, err)
	}
	return string(b), nil
}

// DecodeRecord parses a stored record. Errors wrap ErrMalformedRecord.
func DecodeRecord(s string) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if fields == nil {
		return Record{}, fmt.Errorf("%w: not a JSON object", ErrMalformedRecord)
	}

	rawID, ok := fields[idField]
	if !ok {
		return Record{}, fmt.Errorf("%w: missing %q", ErrMalformedRecord, idField)
	}
	var id int
	if err := json.Unmarshal(rawID, &id); err != nil {
		return Record{}, fmt.Errorf("%w: invalid %q: %w", ErrMalformedRecord, idField, err)
	}
	if id < 0 {
		return Record{}, fmt.Errorf("%w: negative id %d", ErrMalformedRecord, id)
	}
	delete(fields, idField)

	payload, err := marshalObject(fields)
	if err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return Record{ID: id, Payload: payload}, nil
}

// ValidatePayload reports whether payload can be stored in a Record.
func ValidatePayload(payload json.RawMessage) error {
	_, err := payloadFields(payload)
	return err
}

// payloadFields decodes payload into its object members, dropping any
// caller-supplied id. An empty payload is an empty object.
func payloadFields(payload json.RawMessage) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage)
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return fields, nil
	}
	if trimmed[0] != '{' {
		return nil, ErrInvalidPayload
	}
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage)
	}
	delete(fields, idField)
	return fields, nil
}

// marshalObject encodes fields without HTML escaping, so stored text such as
// "a < b" round-trips byte for byte.
func marshalObject(fields map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(fields); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
