package patch

import (
	"time"
)

// Collection holds records newest first.
type Collection []Record

func (c Collection) HasTitle(title string) bool {
	for _, r := range c {
		if r.Title == title {
			return true
		}
	}
	return false
}

// Prepend returns a new collection with records placed ahead of c in the
// order given.
func (c Collection) Prepend(records ...Record) Collection {
	next := make(Collection, 0, len(records)+len(c))
	next = append(next, records...)
	return append(next, c...)
}

func (c Collection) Find(id string) (*Record, bool) {
	for i := range c {
		if c[i].ID == id {
			return &c[i], true
		}
	}
	return nil, false
}

// State is everything the ingestion cycle persists between runs.
type State struct {
	Patches       Collection
	LastCheckedAt time.Time
}

// NewState returns an empty state whose last check is the zero time.
func NewState() *State {
	return &State{Patches: Collection{}}
}
