package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Count is a non-negative engagement counter. The feed API serializes it as
// a decimal string; decoding also accepts plain numbers and null.
type Count int64

// Inc returns c+1.
func (c Count) Inc() Count { return c + 1 }

// Dec returns c-1, never below zero.
func (c Count) Dec() Count {
	if c <= 0 {
		return 0
	}
	return c - 1
}

func (c Count) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// MarshalJSON writes the counter as a JSON string.
func (c Count) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts "12", 12 and null. Negative values are clamped to 0.
func (c *Count) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = 0
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*c = 0
			return nil
		}
	}
	n, err := ParseCount(raw)
	if err != nil {
		return err
	}
	*c = n
	return nil
}

// ParseCount parses a decimal counter, clamping negatives to 0.
func ParseCount(s string) (Count, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q: %w", s, err)
	}
	if n < 0 {
		n = 0
	}
	return Count(n), nil
}

// Scan implements sql.Scanner for computed COUNT(*) columns.
func (c *Count) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = 0
	case int64:
		*c = Count(v)
	case int32:
		*c = Count(v)
	case float64:
		*c = Count(v)
	case []byte:
		n, err := ParseCount(string(v))
		if err != nil {
			return err
		}
		*c = n
	case string:
		n, err := ParseCount(v)
		if err != nil {
			return err
		}
		*c = n
	default:
		return fmt.Errorf("unsupported count source %T", src)
	}
	if *c < 0 {
		*c = 0
	}
	return nil
}

// Value implements driver.Valuer.
func (c Count) Value() (driver.Value, error) {
	return int64(c), nil
}
