package domain

import (
	"encoding/json"
	"slices"
)

// MaxFavorites is the capacity of the favorites set
const MaxFavorites = 5

// RejectReason explains why a favorites mutation did not apply
type RejectReason string

const (
	RejectNone      RejectReason = ""
	RejectCapacity  RejectReason = "capacity"
	RejectDuplicate RejectReason = "duplicate"
	RejectInvalidID RejectReason = "invalid_id"
	RejectNotMember RejectReason = "not_member"
)

// MutationResult reports what a favorites mutation changed
type MutationResult struct {
	Added   bool         `json:"added"`
	Removed bool         `json:"removed"`
	Reason  RejectReason `json:"reason,omitempty"`
}

// Applied reports whether the set changed
func (r MutationResult) Applied() bool {
	return r.Added || r.Removed
}

// Favorites is an insertion-ordered set of at most MaxFavorites coin ids.
// It is not safe for concurrent use; callers serialize access.
type Favorites struct {
	ids []string
}

// NewFavorites builds a set from ids, dropping empty and duplicate
// entries and keeping the first MaxFavorites
func NewFavorites(ids ...string) *Favorites {
	f := &Favorites{ids: make([]string, 0, MaxFavorites)}
	for _, id := range ids {
		if len(f.ids) == MaxFavorites {
			break
		}
		if id == "" || f.Contains(id) {
			continue
		}
		f.ids = append(f.ids, id)
	}
	return f
}

// ParseFavorites decodes a persisted JSON array.
// Entries that are not non-empty strings are discarded; unreadable input yields an empty set.
func ParseFavorites(raw []byte) *Favorites {
	var entries []any
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil {
		return NewFavorites()
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if s, ok := e.(string); ok && s != "" {
			ids = append(ids, s)
		}
	}
	return NewFavorites(ids...)
}

// Toggle removes id when present, otherwise appends it if there is room.
// A full set is left unchanged with RejectCapacity; the caller is expected
// to ask which member to evict and then call Replace.
func (f *Favorites) Toggle(id string) MutationResult {
	if id == "" {
		return MutationResult{Reason: RejectInvalidID}
	}

	if i := slices.Index(f.ids, id); i >= 0 {
		f.ids = slices.Delete(f.ids, i, i+1)
		return MutationResult{Removed: true}
	}

	if len(f.ids) >= MaxFavorites {
		return MutationResult{Reason: RejectCapacity}
	}

	f.ids = append(f.ids, id)
	return MutationResult{Added: true}
}

// Replace removes removeID when present, then appends addID when it is
// not already a member and there is room. An absent removeID is a no-op removal.
func (f *Favorites) Replace(removeID, addID string) MutationResult {
	var res MutationResult

	if i := slices.Index(f.ids, removeID); removeID != "" && i >= 0 {
		f.ids = slices.Delete(f.ids, i, i+1)
		res.Removed = true
	}

	switch {
	case addID == "":
		res.Reason = RejectInvalidID
	case f.Contains(addID):
		res.Reason = RejectDuplicate
	case len(f.ids) >= MaxFavorites:
		res.Reason = RejectCapacity
	default:
		f.ids = append(f.ids, addID)
		res.Added = true
	}

	return res
}

// Contains reports membership
func (f *Favorites) Contains(id string) bool {
	return slices.Contains(f.ids, id)
}

// IDs returns a copy of the members in insertion order
func (f *Favorites) IDs() []string {
	return slices.Clone(f.ids)
}

// Len returns the number of members
func (f *Favorites) Len() int {
	return len(f.ids)
}

// Full reports whether the set is at capacity
func (f *Favorites) Full() bool {
	return len(f.ids) >= MaxFavorites
}

// MarshalJSON encodes the set as a JSON array of ids
func (f *Favorites) MarshalJSON() ([]byte, error) {
	if f.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.ids)
}
