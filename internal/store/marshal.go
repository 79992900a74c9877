package store

import (
	"encoding/json"
	"fmt"
)

// SQLite INTEGER is a signed 64-bit value and database/sql rejects uint64
// arguments with the high bit set. Amounts are therefore stored as the
// int64 with the same bit pattern and converted back on read.

func toDB(v uint64) int64 {
	return int64(v)
}

func fromDB(v int64) uint64 {
	return uint64(v)
}

// marshalResult encodes an operation result as JSON TEXT.
func marshalResult(result any) (string, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// UnmarshalResult decodes a stored operation result into out.
func UnmarshalResult(data string, out any) error {
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}
