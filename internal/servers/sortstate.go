package servers

import (
	"net/url"
)

// Query parameter names carrying the sort directive.
const (
	ParamSortBy = "sortBy"
	ParamOrder  = "order"
)

// DirectiveFromQuery reads the directive from q. Both parameters must be
// present and valid; otherwise ok is false and the list stays in natural
// order.
func DirectiveFromQuery(q url.Values) (d SortDirective, ok bool) {
	field, err := ParseField(q.Get(ParamSortBy))
	if err != nil {
		return SortDirective{}, false
	}
	order, err := ParseOrder(q.Get(ParamOrder))
	if err != nil {
		return SortDirective{}, false
	}
	return SortDirective{Field: field, Order: order}, true
}

// Encode writes d into q, leaving other parameters untouched.
func (d SortDirective) Encode(q url.Values) {
	q.Set(ParamSortBy, string(d.Field))
	q.Set(ParamOrder, string(d.Order))
}

// Next returns the directive that results from selecting field while cur is
// active: the same field toggles the order, any other field starts at asc.
func Next(cur SortDirective, active bool, field Field) SortDirective {
	if active && cur.Field == field {
		return SortDirective{Field: field, Order: cur.Order.Toggle()}
	}
	return SortDirective{Field: field, Order: Asc}
}

// Location is the navigable state a SortController reads and rewrites.
// nav.History implements it.
type Location interface {
	Current() *url.URL
	Replace(u *url.URL)
}

// SortController keeps the active directive in the query string of a
// Location, so reloading or sharing the location reproduces the order.
type SortController struct {
	loc    Location
	sorter *Sorter
}

// NewSortController binds a controller to loc. A nil sorter uses English
// collation.
func NewSortController(loc Location, sorter *Sorter) *SortController {
	if loc == nil {
		panic("servers: NewSortController called with nil Location")
	}
	if sorter == nil {
		sorter = defaultSorter
	}
	return &SortController{loc: loc, sorter: sorter}
}

// Directive returns the directive encoded in the current location.
func (c *SortController) Directive() (SortDirective, bool) {
	u := c.loc.Current()
	if u == nil {
		return SortDirective{}, false
	}
	return DirectiveFromQuery(u.Query())
}

// SelectField toggles or switches the sort field. The location is replaced
// in place so sorting never adds back/forward history entries.
func (c *SortController) SelectField(field Field) SortDirective {
	cur, active := c.Directive()
	next := Next(cur, active, field)

	u := cloneURL(c.loc.Current())
	q := u.Query()
	next.Encode(q)
	u.RawQuery = q.Encode()
	c.loc.Replace(u)

	return next
}

// Apply returns items in the order the current directive asks for, or
// items itself when no directive is active.
func (c *SortController) Apply(items []Server) []Server {
	d, ok := c.Directive()
	if !ok {
		return items
	}
	return c.sorter.Sort(items, d.Field, d.Order)
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return &url.URL{Path: "/"}
	}
	c := *u
	if u.User != nil {
		user := *u.User
		c.User = &user
	}
	return &c
}
