// Package storage keeps merged bundles: S3 in production, a local directory
// in development.
package storage

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Get for unknown bundle ids.
var ErrNotFound = errors.New("storage: bundle not found")

// Meta describes a stored bundle.
type Meta struct {
	Name        string `json:"name"`
	CaseNumber  string `json:"case_number"`
	ContentType string `json:"content_type"`
	Pages       int    `json:"pages"`
	Size        int64  `json:"size"`
	Sealed      bool   `json:"sealed"`
}

func (m Meta) toObjectMetadata() map[string]string {
	out := map[string]string{
		"name":        m.Name,
		"case-number": m.CaseNumber,
		"pages":       strconv.Itoa(m.Pages),
	}
	if m.Sealed {
		out["encryption-format"] = SealFormat
	}
	return out
}

func metaFromObject(md map[string]string) Meta {
	lower := make(map[string]string, len(md))
	for k, v := range md {
		lower[strings.ToLower(k)] = v
	}
	m := Meta{
		Name:       lower["name"],
		CaseNumber: lower["case-number"],
		Sealed:     lower["encryption-format"] == SealFormat,
	}
	m.Pages, _ = strconv.Atoi(lower["pages"])
	return m
}

// safeID rejects ids that could escape a key prefix or directory.
func safeID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
