package types

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/google/uuid"
)

// DeliveryOption captures the buyer's structured delivery choices for an order.
// It replaces the legacy habit of packing service ids into the order note.
type DeliveryOption struct {
	ServiceID     int       `json:"service_id"`
	ServiceTypeID int       `json:"service_type_id"`
	AddressID     uuid.UUID `json:"address_id"`
	Note          string    `json:"note,omitempty"`
}

// Value serializes the delivery option to JSON.
func (d *DeliveryOption) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

// Scan decodes JSONB into the delivery option.
func (d *DeliveryOption) Scan(value interface{}) error {
	if value == nil {
		*d = DeliveryOption{}
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, d)
}

// JSONMap stores an arbitrary JSON object inside a JSONB column.
type JSONMap map[string]any

// Value serializes the map to JSON.
func (j *JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan decodes JSONB into the map.
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded JSONMap
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*j = decoded
	return nil
}

// StringList stores a JSON array of strings inside a JSONB column.
type StringList []string

// Value serializes the list to JSON.
func (s *StringList) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan decodes JSONB into the list.
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded StringList
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*s = decoded
	return nil
}
