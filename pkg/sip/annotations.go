package sip

import (
	"slices"
	"strings"
)

// Annotations is an insertion-ordered set of SIP annotations such as
// "Abstract", "PyName=encode_" or "TransferThis".
type Annotations struct {
	items []string
}

// NewAnnotations returns a set holding items.
func NewAnnotations(items ...string) *Annotations {
	a := &Annotations{}
	for _, item := range items {
		a.Add(item)
	}

	return a
}

// Add inserts item unless present.
func (a *Annotations) Add(item string) {
	if !a.Has(item) {
		a.items = append(a.items, item)
	}
}

// Remove deletes item if present.
func (a *Annotations) Remove(item string) {
	a.items = slices.DeleteFunc(a.items, func(s string) bool { return s == item })
}

// Has reports membership.
func (a *Annotations) Has(item string) bool {
	return slices.Contains(a.items, item)
}

// Len is the number of annotations.
func (a *Annotations) Len() int {
	if a == nil {
		return 0
	}

	return len(a.items)
}

// Items returns the annotations in insertion order.
func (a *Annotations) Items() []string {
	return slices.Clone(a.items)
}

// Clone copies the set.
func (a *Annotations) Clone() *Annotations {
	if a == nil {
		return NewAnnotations()
	}

	return &Annotations{items: slices.Clone(a.items)}
}

// Render is " /A,B/", or "" for an empty set.
func (a *Annotations) Render() string {
	if a.Len() == 0 {
		return ""
	}

	return " /" + strings.Join(a.items, ",") + "/"
}
