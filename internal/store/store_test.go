package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/pdfconsolidator/internal/document"
)

func TestNewRecord(t *testing.T) {
	out := &document.MergedOutput{
		TotalPages:    9,
		DocumentCount: 2,
		Documents: []document.ProcessedDocument{
			{DisplayName: "a.pdf", Method: "DirectLoad", PageCount: 3, Success: true},
			{DisplayName: "b.pdf", Method: "StructuralRepair", PageCount: 5, PlaceholderPages: 2, UsedPlaceholders: true, Pathology: document.StructurallySuspect},
		},
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	r := NewRecord("id1", "C-42", "bundles/id1.pdf", out, now)
	assert.Equal(t, 9, r.TotalPages)
	assert.Equal(t, time.UTC, r.CreatedAt.Location())
	require.Len(t, r.Documents, 2)
	assert.Equal(t, "structurally-suspect", r.Documents[1].Pathology)
	assert.Equal(t, 2, r.Documents[1].Placeholders)
}

func TestMemoryRecords(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRecords()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.Save(ctx, Record{ID: "1", CaseNumber: "C", CreatedAt: base}))
	require.NoError(t, m.Save(ctx, Record{ID: "2", CaseNumber: "C", CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, m.Save(ctx, Record{ID: "3", CaseNumber: "D", CreatedAt: base}))

	r, err := m.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "C", r.CaseNumber)
	_, err = m.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := m.ListByCase(ctx, "C")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2", list[0].ID)
}
