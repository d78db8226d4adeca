package session

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Simulation ID format: {namespace}--{payload}.
const (
	// MaxIDLength bounds an ID so it is always usable as a file name.
	MaxIDLength = 80

	// NamespaceDelimiter separates the namespace from the payload.
	NamespaceDelimiter = "--"

	// EnvSessionID overrides the generated ID.
	EnvSessionID = "KAROL_SESSION_ID"
)

// ID namespaces.
const (
	NamespaceExplicit = "ex"
	NamespaceUUID     = "uuid"
)

// NewID returns an ID for a new simulation. An explicit value wins, then
// $KAROL_SESSION_ID, then a random UUID.
func NewID(explicit string) string {
	if explicit != "" {
		return formatExplicitID(explicit)
	}
	if env := os.Getenv(EnvSessionID); env != "" {
		return formatExplicitID(env)
	}
	return formatID(NamespaceUUID, uuid.NewString())
}

// formatExplicitID keeps a caller-supplied namespace when the value already
// has one.
func formatExplicitID(id string) string {
	if ns, payload, ok := strings.Cut(id, NamespaceDelimiter); ok && ns != "" {
		return formatID(sanitize(ns), payload)
	}
	return formatID(NamespaceExplicit, id)
}

// formatID sanitizes payload and, when it is too long, truncates it with a
// hash suffix of the original so distinct inputs stay distinct.
func formatID(namespace, payload string) string {
	sum := hashString(payload)
	payload = sanitize(payload)

	limit := MaxIDLength - len(namespace) - len(NamespaceDelimiter)
	if len(payload) > limit {
		keep := limit - 9
		if keep < 8 {
			payload = sum[:limit]
		} else {
			payload = payload[:keep] + "_" + sum[:8]
		}
	}
	return namespace + NamespaceDelimiter + payload
}

// sanitize replaces everything outside [A-Za-z0-9._-] with an underscore.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isFilenameSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isFilenameSafe(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '.' ||
		r == '-' ||
		r == '_'
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
