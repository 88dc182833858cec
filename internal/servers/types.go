// Package servers holds the server list model, the sort engine that orders
// it and the controller that keeps the active sort directive in a location's
// query string.
package servers

import (
	"fmt"
	"strconv"
)

// Server is one entry of the GET /servers payload.
type Server struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// DistanceString formats Distance without trailing zeros.
func (s Server) DistanceString() string {
	return strconv.FormatFloat(s.Distance, 'f', -1, 64)
}

// Field names a sortable column.
type Field string

// Sortable fields.
const (
	FieldName     Field = "name"
	FieldDistance Field = "distance"
)

// Fields lists every sortable field in display order.
var Fields = []Field{FieldName, FieldDistance}

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldName, FieldDistance:
		return Field(s), nil
	}
	return "", fmt.Errorf("unknown sort field %q (want name or distance)", s)
}

// Order is a sort direction.
type Order string

// Sort directions.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseOrder validates an order name.
func ParseOrder(s string) (Order, error) {
	switch Order(s) {
	case Asc, Desc:
		return Order(s), nil
	}
	return "", fmt.Errorf("unknown sort order %q (want asc or desc)", s)
}

// Toggle flips asc and desc.
func (o Order) Toggle() Order {
	if o == Asc {
		return Desc
	}
	return Asc
}

// SortDirective is the (field, order) pair controlling display order.
type SortDirective struct {
	Field Field
	Order Order
}

// Label returns the human description of the direction for the field,
// e.g. "A-Z" or "High-Low".
func (d SortDirective) Label() string {
	switch {
	case d.Field == FieldName && d.Order == Asc:
		return "A-Z"
	case d.Field == FieldName:
		return "Z-A"
	case d.Order == Asc:
		return "Low-High"
	default:
		return "High-Low"
	}
}

// String renders the directive as "field:order".
func (d SortDirective) String() string {
	return string(d.Field) + ":" + string(d.Order)
}
