// Package idgen produces the identifiers reportedit hands out: edit session
// ids, published report ids and fallback chart ids for surfaces that carry
// no element id of their own.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator of base-36 ids of the given length. Short and
// URL-safe, used for shareable report links and chart tokens.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator of RFC 9562 time-sortable UUIDs.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every id of gen ("ses_", "rpt_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Session ids are time-sortable so logs of successive edit sessions line up.
var Session Generator = Prefixed("ses_", UUIDv7())

// Report ids end up in shareable URLs and stay short.
var Report Generator = NanoID(12)

// ChartToken names a chart whose surface has no element id. Such tokens do
// not survive a reload of the document.
var ChartToken Generator = Prefixed("chart_", NanoID(8))
