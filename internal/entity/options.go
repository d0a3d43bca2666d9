package entity

import (
	"fmt"
	"sort"
	"strings"
)

// ItemOptions holds the option name -> value mapping of a cart item
// (size, color, ...). Construction order is irrelevant: the canonical
// serialization sorts keys, and two option sets are equal iff their
// canonical forms are equal.
type ItemOptions map[string]any

// Get returns the option value for name, or nil when unset.
func (o ItemOptions) Get(name string) any {
	if o == nil {
		return nil
	}
	return o[name]
}

// Canonical returns the sorted-key serialization used for hashing and
// equality checks.
func (o ItemOptions) Canonical() string {
	if len(o) == 0 {
		return ""
	}

	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(';')
		}
		fmt.Fprintf(&b, "%s=%v", k, o[k])
	}
	return b.String()
}

// Equal reports whether both option sets have the same content.
func (o ItemOptions) Equal(other ItemOptions) bool {
	return o.Canonical() == other.Canonical()
}

// Clone returns a copy that can be mutated independently.
func (o ItemOptions) Clone() ItemOptions {
	if o == nil {
		return nil
	}
	clone := make(ItemOptions, len(o))
	for k, v := range o {
		clone[k] = v
	}
	return clone
}
