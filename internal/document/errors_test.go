package document

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemediationMentionsDocument(t *testing.T) {
	for _, k := range []ErrorKind{ErrEncryptedPdf, ErrCorruptedPdf, ErrIncompatiblePdf} {
		msg := k.Remediation("brief.pdf")
		assert.Contains(t, msg, `"brief.pdf"`, k)
		assert.Contains(t, msg, "Print > Save as PDF", k)
	}
	assert.NotContains(t, ErrExternalToolUnavailable.Remediation("x.pdf"), "Save as PDF")
	assert.Empty(t, ErrNone.Remediation("x.pdf"))
	assert.True(t, ErrExternalToolUnavailable.EnvironmentProblem())
	assert.False(t, ErrCorruptedPdf.EnvironmentProblem())
}

func TestErrorClassification(t *testing.T) {
	tu := fmt.Errorf("normalize: %w", &ToolUnavailableError{Tool: "qpdf", Err: errors.New("not found")})
	assert.True(t, IsToolUnavailable(tu))
	assert.False(t, IsToolUnavailable(errors.New("boom")))

	assert.True(t, IsCancelled(fmt.Errorf("chain: %w", context.Canceled)))
	assert.False(t, IsCancelled(context.DeadlineExceeded))

	be, ok := AsBatchError(fmt.Errorf("merge: %w", &BatchError{Kind: ErrCorruptedPdf, Document: "a.pdf"}))
	require.True(t, ok)
	assert.Equal(t, "a.pdf", be.Document)
	_, ok = AsBatchError(tu)
	assert.False(t, ok)

	ie := &IntegrityError{Document: "a.pdf", Page: 3, Err: context.Canceled}
	assert.ErrorIs(t, ie, context.Canceled)
	assert.Contains(t, ie.Error(), "page 3")
}

func TestDigestAndPathology(t *testing.T) {
	assert.Len(t, Digest(nil), 64)
	assert.Equal(t, Digest([]byte("a")), Digest([]byte("a")))
	assert.NotEqual(t, Digest([]byte("a")), Digest([]byte("b")))
	assert.Len(t, Pathologies(), 3)
	assert.Equal(t, "encrypted", Encrypted.String())
	assert.Equal(t, "structurally-suspect", StructurallySuspect.String())
}
