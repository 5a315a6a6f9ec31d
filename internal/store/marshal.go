package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/cobs/internal/cob"
)

// marshalOp converts an op to its JSON wire document for storage.
// HTML escaping is disabled so stored text matches what was hashed.
func marshalOp(op cob.Op) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(cob.DocumentOf(op)); err != nil {
		return "", fmt.Errorf("marshal op: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalOp parses and validates a stored op document.
func unmarshalOp(data string) (cob.Op, error) {
	var doc cob.OpDocument
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("unmarshal op: %w", err)
	}
	op, err := doc.Op()
	if err != nil {
		return nil, fmt.Errorf("unmarshal op: %w", err)
	}
	return op, nil
}

// marshalParents stores parent ids as a JSON array; an empty list is "[]".
func marshalParents(parents []cob.ActionID) (string, error) {
	if parents == nil {
		parents = []cob.ActionID{}
	}
	data, err := json.Marshal(parents)
	if err != nil {
		return "", fmt.Errorf("marshal parents: %w", err)
	}
	return string(data), nil
}

func unmarshalParents(data string) ([]cob.ActionID, error) {
	var parents []cob.ActionID
	if err := json.Unmarshal([]byte(data), &parents); err != nil {
		return nil, fmt.Errorf("unmarshal parents: %w", err)
	}
	if len(parents) == 0 {
		return nil, nil
	}
	return parents, nil
}
