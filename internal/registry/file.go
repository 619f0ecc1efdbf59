package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// seedFile is the on-disk form consumed by LoadFile.
type seedFile struct {
	Rooms  []Room   `json:"rooms"`
	People []Person `json:"people"`
}

// LoadFile seeds an in-memory registry from a JSON file. Room and person
// management is owned by an upstream system; this file is its exported
// snapshot.
func LoadFile(path string) (*InMemoryRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file: %w", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("parse registry file: %w", err)
	}

	reg := NewInMemoryRegistry()
	for _, room := range seed.Rooms {
		if room.ID.IsZero() {
			return nil, fmt.Errorf("registry file: room without id")
		}
		reg.PutRoom(room)
	}
	for _, p := range seed.People {
		if p.ID.IsZero() {
			return nil, fmt.Errorf("registry file: person without id")
		}
		reg.PutPerson(p)
	}
	return reg, nil
}
