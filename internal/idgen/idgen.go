// Package idgen generates short, URL-safe identifiers backed by nanoid.
// Every identifier carries a prefix naming the kind of record it refers to,
// so "dc-3kTMd9QwZe" is recognisably a decision in logs and URLs.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefix identifies the record kind an ID belongs to.
type Prefix string

const (
	Room     Prefix = "rm-"
	Decision Prefix = "dc-"
	Vote     Prefix = "vt-"
	Activity Prefix = "ac-"
)

// Alphabet defines the character set used for the random portion of the ID.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 10

// New returns a fresh ID with the given prefix.
func New(p Prefix) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return string(p) + id, nil
}

// Has reports whether id was generated with prefix p.
func Has(id string, p Prefix) bool {
	return strings.HasPrefix(id, string(p)) && len(id) == len(p)+Length
}
