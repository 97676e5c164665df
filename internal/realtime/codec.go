package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrMissingBranch = errors.New("change has no branch_id")

// Decode parses the JSON payload published by the orders trigger.
func Decode(payload []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.BranchID == uuid.Nil {
		return Change{}, ErrMissingBranch
	}
	return c, nil
}

// Encode renders c in the trigger's payload format.
func Encode(c Change) ([]byte, error) {
	return json.Marshal(c)
}
