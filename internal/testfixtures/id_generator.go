package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// IDGenerator hands out predictable identifiers: "<prefix>-1", "<prefix>-2" and
// so on. It is safe for concurrent use.
type IDGenerator struct {
	prefix string
	next   atomic.Uint64
	format func(prefix string, n uint64) string
}

// NewIDGenerator returns a generator for prefix, defaulting to "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix, format: func(p string, n uint64) string {
		return fmt.Sprintf("%s-%d", p, n)
	}}
}

// NewHashGenerator returns a generator of twelve character alphanumeric RSVP
// hashes such as "hash00000001", matching the shape of production hashes.
func NewHashGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "hash"
	}
	prefix = strings.Map(func(r rune) rune {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return r
		}
		return -1
	}, prefix)
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	width := 12 - len(prefix)
	return &IDGenerator{prefix: prefix, format: func(p string, n uint64) string {
		return fmt.Sprintf("%s%0*d", p, width, n)
	}}
}

// Next returns the next identifier.
func (g *IDGenerator) Next() string {
	return g.format(g.prefix, g.next.Add(1))
}

// NextFunc returns g.Next for injection into services. A nil generator
// yields empty identifiers.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Reset restarts the sequence so the next identifier ends in 1.
func (g *IDGenerator) Reset() {
	g.next.Store(0)
}
