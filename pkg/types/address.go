package types

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// DeliveryAddress mirrors the delivery_address_t composite Postgres type.
type DeliveryAddress struct {
	Street     string  `json:"street"`
	Unit       *string `json:"unit,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Notes      *string `json:"notes,omitempty"`
}

// IsComplete reports whether every field required to dispatch a courier is set.
func (a DeliveryAddress) IsComplete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.PostalCode) != ""
}

// Value marshals DeliveryAddress into a Postgres composite literal.
func (a DeliveryAddress) Value() (driver.Value, error) {
	if strings.TrimSpace(a.Street) == "" {
		return nil, fmt.Errorf("delivery address: missing street")
	}
	if strings.TrimSpace(a.City) == "" {
		return nil, fmt.Errorf("delivery address: missing city")
	}
	if strings.TrimSpace(a.State) == "" {
		return nil, fmt.Errorf("delivery address: missing state")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return nil, fmt.Errorf("delivery address: missing postal_code")
	}

	country := strings.TrimSpace(a.Country)
	if country == "" {
		country = "US"
	}

	parts := []string{
		quoteCompositeString(a.Street),
		quoteCompositeNullable(a.Unit),
		quoteCompositeString(a.City),
		quoteCompositeString(a.State),
		quoteCompositeString(a.PostalCode),
		quoteCompositeString(country),
		strconv.FormatFloat(a.Lat, 'f', -1, 64),
		strconv.FormatFloat(a.Lng, 'f', -1, 64),
		quoteCompositeNullable(a.Notes),
	}

	return "(" + strings.Join(parts, ",") + ")", nil
}

// Scan decodes the Postgres composite literal.
func (a *DeliveryAddress) Scan(value interface{}) error {
	if value == nil {
		*a = DeliveryAddress{}
		return nil
	}

	raw, ok := toString(value)
	if !ok {
		return fmt.Errorf("delivery address: unsupported scan type %T", value)
	}

	fields, err := parseComposite(raw, 9)
	if err != nil {
		return err
	}

	a.Street = fields[0]
	a.Unit = newCompositeNullable(fields[1])
	a.City = fields[2]
	a.State = fields[3]
	a.PostalCode = fields[4]

	country := strings.TrimSpace(fields[5])
	if country == "" || isCompositeNull(fields[5]) {
		country = "US"
	}
	a.Country = country

	if fields[6] != "" && !isCompositeNull(fields[6]) {
		lat, err := strconv.ParseFloat(fields[6], 64)
		if err != nil {
			return fmt.Errorf("delivery address: parse lat %w", err)
		}
		a.Lat = lat
	}
	if fields[7] != "" && !isCompositeNull(fields[7]) {
		lng, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return fmt.Errorf("delivery address: parse lng %w", err)
		}
		a.Lng = lng
	}

	a.Notes = newCompositeNullable(fields[8])

	return nil
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
