package cob

import (
	"cmp"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/roach88/cobs/internal/ir"
)

// ActionID is the content-addressed id of an action: the hex SHA-256 of its
// canonical payload under ir.DomainAction. The id of an issue is the id of
// its Create action.
type ActionID string

// Short returns the first seven characters, for display.
func (id ActionID) Short() string {
	if len(id) <= 7 {
		return string(id)
	}
	return string(id[:7])
}

func (id ActionID) String() string {
	return string(id)
}

// ParseActionID validates a full 64-character hex id.
func ParseActionID(s string) (ActionID, error) {
	if len(s) != 64 {
		return "", fmt.Errorf("invalid action id %q: expected 64 hex characters", s)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid action id %q: %w", s, err)
	}
	return ActionID(s), nil
}

// Action is one signed, immutable entry of an issue's log.
//
// The id covers author, timestamp, parents and op. The signature is
// excluded: it authorizes the payload, it is not part of what happened.
type Action struct {
	ID        ActionID
	Author    PublicKey
	Timestamp int64 // unix milliseconds
	Parents   []ActionID
	Op        Op
	Signature []byte
}

// NewAction builds and signs an action. Parents are sorted and
// deduplicated; the op's text is NFC normalized and the op is validated.
func NewAction(op Op, parents []ActionID, timestamp int64, signer Signer) (Action, error) {
	if op == nil {
		return Action{}, NewInvalidActionError("", "op is required")
	}
	op = normalizeOp(op)
	if err := validateOp(op); err != nil {
		return Action{}, NewInvalidActionError("", fmt.Sprintf("%s: %v", op.Kind(), err))
	}

	a := Action{
		Author:    signer.PublicKey(),
		Timestamp: timestamp,
		Parents:   normalizeParents(parents),
		Op:        op,
	}
	if a.Author == "" {
		return Action{}, NewInvalidActionError("", "signer has no public key")
	}
	if err := checkText(string(a.Author)); err != nil {
		return Action{}, NewInvalidActionError("", fmt.Sprintf("author: %v", err))
	}

	payload, err := a.Payload()
	if err != nil {
		return Action{}, fmt.Errorf("new action: %w", err)
	}

	sig, err := signer.Sign(payload)
	if err != nil {
		return Action{}, fmt.Errorf("new action: sign: %w", err)
	}
	a.Signature = sig
	a.ID = ActionID(ir.Hash(ir.DomainAction, payload))
	return a, nil
}

// Payload returns the canonical bytes that are signed and hashed.
func (a Action) Payload() ([]byte, error) {
	if a.Op == nil {
		return nil, fmt.Errorf("payload: op is nil")
	}
	parents := make([]string, 0, len(a.Parents))
	for _, p := range normalizeParents(a.Parents) {
		parents = append(parents, string(p))
	}
	return ir.MarshalCanonical(map[string]any{
		"author":    string(a.Author),
		"timestamp": a.Timestamp,
		"parents":   parents,
		"op":        a.Op.payload(),
	})
}

// Verify checks that the action is well formed and that its id matches its
// content. Text that is not valid UTF-8 in NFC form is rejected, since the
// id would not cover its exact bytes. It does not check the signature.
func (a Action) Verify() error {
	if a.Op == nil {
		return NewInvalidActionError(a.ID, "op is required")
	}
	if err := validateOp(a.Op); err != nil {
		return NewInvalidActionError(a.ID, fmt.Sprintf("%s: %v", a.Op.Kind(), err))
	}
	if a.Author == "" {
		return NewInvalidActionError(a.ID, "author is required")
	}
	if err := checkText(string(a.Author)); err != nil {
		return NewInvalidActionError(a.ID, fmt.Sprintf("author: %v", err))
	}
	for _, p := range a.Parents {
		if err := checkText(string(p)); err != nil {
			return NewInvalidActionError(a.ID, fmt.Sprintf("parent: %v", err))
		}
	}
	if len(a.Signature) == 0 {
		return NewInvalidActionError(a.ID, "signature is required")
	}
	payload, err := a.Payload()
	if err != nil {
		return NewInvalidActionError(a.ID, err.Error())
	}
	if want := ActionID(ir.Hash(ir.DomainAction, payload)); want != a.ID {
		return NewInvalidActionError(a.ID, fmt.Sprintf("id does not match content (want %s)", want.Short()))
	}
	return nil
}

// IsCreate reports whether the action carries a Create op.
func (a Action) IsCreate() bool {
	_, ok := a.Op.(Create)
	return ok
}

type actionJSON struct {
	ID        ActionID   `json:"id"`
	Author    PublicKey  `json:"author"`
	Timestamp int64      `json:"timestamp"`
	Parents   []ActionID `json:"parents"`
	Op        OpDocument `json:"op"`
	Signature []byte     `json:"signature"`
}

// MarshalJSON encodes the op as an OpDocument.
func (a Action) MarshalJSON() ([]byte, error) {
	if a.Op == nil {
		return nil, fmt.Errorf("marshal action %s: op is nil", a.ID.Short())
	}
	parents := a.Parents
	if parents == nil {
		parents = []ActionID{}
	}
	return json.Marshal(actionJSON{
		ID:        a.ID,
		Author:    a.Author,
		Timestamp: a.Timestamp,
		Parents:   parents,
		Op:        DocumentOf(a.Op),
		Signature: a.Signature,
	})
}

// UnmarshalJSON decodes and validates the op. The id is not verified here;
// Log.Append does that.
func (a *Action) UnmarshalJSON(data []byte) error {
	var raw actionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	op, err := raw.Op.Op()
	if err != nil {
		return fmt.Errorf("action %s: %w", raw.ID.Short(), err)
	}
	*a = Action{
		ID:        raw.ID,
		Author:    raw.Author,
		Timestamp: raw.Timestamp,
		Parents:   normalizeParents(raw.Parents),
		Op:        op,
		Signature: raw.Signature,
	}
	return nil
}

// compareActions is the tie-break among concurrent actions: author, then
// timestamp, then id.
func compareActions(a, b Action) int {
	if c := cmp.Compare(a.Author, b.Author); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func normalizeParents(parents []ActionID) []ActionID {
	if len(parents) == 0 {
		return nil
	}
	out := slices.Clone(parents)
	slices.Sort(out)
	return slices.Compact(out)
}
