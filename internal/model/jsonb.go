package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON 兼容 pgx 返回的 []byte / string 两种形式
func scanJSON(value interface{}, target interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, target)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), target)
	default:
		return fmt.Errorf("unsupported jsonb value type %T", value)
	}
}

func valueJSON(v interface{}) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Metadata 附加信息 (jsonb)
type Metadata map[string]string

func (m *Metadata) Scan(value interface{}) error { return scanJSON(value, m) }

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return valueJSON(map[string]string(m))
}
