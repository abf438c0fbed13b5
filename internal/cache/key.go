package cache

import (
	"encoding/json"
	"fmt"
)

// Key identifies a cache entry: the operation plus its normalized parameters.
type Key struct {
	Operation string
	Params    string
}

// NewKey normalizes params to canonical JSON, so structurally equal params share a key
// regardless of field order in maps.
func NewKey(operation string, params any) (Key, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Key{}, fmt.Errorf("normalize params for %s: %w", operation, err)
	}

	// Round-trip through a generic value: encoding/json sorts map keys on output.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return Key{}, fmt.Errorf("normalize params for %s: %w", operation, err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return Key{}, fmt.Errorf("normalize params for %s: %w", operation, err)
	}

	return Key{Operation: operation, Params: string(canonical)}, nil
}

func (k Key) String() string {
	return k.Operation + "(" + k.Params + ")"
}
