package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Record is one normalized upstream entity.
type Record = map[string]any

// JSONBMap maps a JSONB object column.
type JSONBMap map[string]any

// Scan implements sql.Scanner.
func (j *JSONBMap) Scan(value any) error {
	data, err := jsonBytes(value)
	if err != nil || data == nil {
		*j = nil
		return err
	}
	return json.Unmarshal(data, j)
}

// Value implements driver.Valuer. A nil map is stored as SQL NULL.
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Records maps a JSONB array column holding normalized records.
type Records []Record

// Scan implements sql.Scanner.
func (r *Records) Scan(value any) error {
	data, err := jsonBytes(value)
	if err != nil || data == nil {
		*r = nil
		return err
	}
	return json.Unmarshal(data, r)
}

// Value implements driver.Valuer.
func (r Records) Value() (driver.Value, error) {
	if r == nil {
		return nil, nil
	}
	return json.Marshal(r)
}

func jsonBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported JSONB scan type %T", value)
	}
}
