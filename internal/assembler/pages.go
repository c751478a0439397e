package assembler

import (
	"fmt"

	"github.com/local/pdfconsolidator/internal/document"
	"github.com/local/pdfconsolidator/internal/pdfops"
)

func separatorPage(d document.ProcessedDocument, ordinal, maxName int) pdfops.PageSpec {
	spec := pdfops.PageSpec{
		Size:  pdfops.Letter,
		Title: fmt.Sprintf("Document %d", ordinal),
		Lines: []string{
			truncate(d.DisplayName, maxName),
			"",
			fmt.Sprintf("Pages: %d", d.PageCount),
			fmt.Sprintf("Recovery method: %s", d.Method),
		},
	}
	if d.UsedPlaceholders {
		spec.Banner = fmt.Sprintf("WARNING: %d placeholder page(s), content not fully recovered", d.PlaceholderPages)
		spec.Lines = append(spec.Lines, "",
			"Some pages of this document could not be recovered and were replaced by",
			"placeholder pages. Review the original before relying on this copy.")
	}
	return spec
}

func integrityPage(name string, page, count int, size pdfops.Dim, maxName int) pdfops.PageSpec {
	return pdfops.PageSpec{
		Size:   size,
		Banner: "MERGE INTEGRITY ERROR",
		Title:  fmt.Sprintf("Page %d of %d could not be added", page, count),
		Lines: []string{
			fmt.Sprintf("Document: %s", truncate(name, maxName)),
			"The page was recovered but could not be composed into this bundle.",
			"Consult the original document for this page.",
		},
	}
}
