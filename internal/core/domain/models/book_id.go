package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// BookID identifies a book across feed data and locally tracked status.
type BookID string

// NewBookIDFromEntryID derives a stable BookID from an Atom entry id.
func NewBookIDFromEntryID(entryID string) BookID {
	sum := sha256.Sum256([]byte(entryID))
	return BookID(hex.EncodeToString(sum[:]))
}

func (id BookID) String() string {
	return string(id)
}
