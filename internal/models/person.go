package models

// Person identifies one chat member. Identity is the platform user ID;
// the name is display-only and may differ between sightings of the same
// person.
type Person struct {
	ID   int64
	Name string
}

// Same reports whether both values refer to the same platform user.
// Names are ignored.
func (p Person) Same(other Person) bool {
	return p.ID == other.ID
}
