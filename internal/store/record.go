// Package store persists case records: which bundle was produced for which
// case, and how every document in it was recovered.
package store

import (
    "context"
    "errors"
    "time"

    "github.com/local/pdfconsolidator/internal/document"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("store: record not found")

// DocSummary is the audit trail of one input document.
type DocSummary struct {
    Name             string             `json:"name"`
    Method           string             `json:"method"`
    Pages            int                `json:"pages"`
    Placeholders     int                `json:"placeholders"`
    UsedPlaceholders bool               `json:"usedPlaceholders"`
    Pathology        string             `json:"pathology"`
    Digest           string             `json:"digest"`
    Attempts         []document.Attempt `json:"attempts"`
}

// Record is what the service remembers about a merged bundle.
type Record struct {
    ID            string       `json:"id"`
    CaseNumber    string       `json:"caseNumber"`
    TotalPages    int          `json:"totalPages"`
    DocumentCount int          `json:"documentCount"`
    StorageKey    string       `json:"storageKey"`
    CreatedAt     time.Time    `json:"createdAt"`
    Documents     []DocSummary `json:"documents"`
}

// Records is implemented by RedisRecords and MemoryRecords.
type Records interface {
    Save(ctx context.Context, r Record) error
    Get(ctx context.Context, id string) (Record, error)
    ListByCase(ctx context.Context, caseNumber string) ([]Record, error)
}

// NewRecord builds the record of a merged output.
func NewRecord(id, caseNumber, storageKey string, out *document.MergedOutput, now time.Time) Record {
    r := Record{
        ID:            id,
        CaseNumber:    caseNumber,
        TotalPages:    out.TotalPages,
        DocumentCount: out.DocumentCount,
        StorageKey:    storageKey,
        CreatedAt:     now.UTC(),
    }
    for _, d := range out.Documents {
        r.Documents = append(r.Documents, DocSummary{
            Name:             d.DisplayName,
            Method:           d.Method,
            Pages:            d.PageCount,
            Placeholders:     d.PlaceholderPages,
            UsedPlaceholders: d.UsedPlaceholders,
            Pathology:        d.Pathology.String(),
            Digest:           d.Digest,
            Attempts:         d.Attempts,
        })
    }
    return r
}
