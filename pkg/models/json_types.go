package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a map[string]interface{} that implements sql.Scanner and driver.Valuer
type JSONMap map[string]interface{}

// Value implements driver.Valuer for JSONMap
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner for JSONMap
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, (*map[string]interface{})(m))
	case string:
		return json.Unmarshal([]byte(v), (*map[string]interface{})(m))
	default:
		return fmt.Errorf("unsupported type for JSONMap: %T", value)
	}
}

// StringList is a []string stored as a JSON array column
type StringList []string

// Value implements driver.Valuer for StringList
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for StringList
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// ParticipantList is a []Participant stored as a JSON array column
type ParticipantList []Participant

// Value implements driver.Valuer for ParticipantList
func (l ParticipantList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for ParticipantList
func (l *ParticipantList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, (*[]Participant)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]Participant)(l))
	default:
		return fmt.Errorf("unsupported type for ParticipantList: %T", value)
	}
}

// HearingList is a []Hearing stored as a JSON array column
type HearingList []Hearing

// Value implements driver.Valuer for HearingList
func (l HearingList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for HearingList
func (l *HearingList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, (*[]Hearing)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]Hearing)(l))
	default:
		return fmt.Errorf("unsupported type for HearingList: %T", value)
	}
}
