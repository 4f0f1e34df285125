package main

import (
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	hashAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	hashLength   = 12
)

func newID() string {
	return uuid.NewString()
}

// newEventHash returns the URL safe token used in RSVP links.
func newEventHash() string {
	hash, err := gonanoid.Generate(hashAlphabet, hashLength)
	if err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:hashLength]
	}
	return hash
}
