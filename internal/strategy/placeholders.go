package strategy

import (
	"fmt"

	"github.com/local/pdfconsolidator/internal/pdfops"
)

func missingObjectPage(name string, page, expected int, size pdfops.Dim) pdfops.PageSpec {
	return pdfops.PageSpec{
		Size:   size,
		Banner: "PLACEHOLDER PAGE",
		Title:  fmt.Sprintf("Page %d of %d could not be recovered", page, expected),
		Lines: []string{
			fmt.Sprintf("Document: %s", name),
			"The page object is missing or damaged in the uploaded file.",
			"Diagnostic: missing object",
			"",
			"Obtain a clean copy of the original and compare this page manually.",
		},
	}
}

func protectedPage(name string, page, total int, size pdfops.Dim) pdfops.PageSpec {
	return pdfops.PageSpec{
		Size:   size,
		Banner: "CONTENT PROTECTED",
		Title:  fmt.Sprintf("Page %d of %d: content protected", page, total),
		Lines: []string{
			fmt.Sprintf("Document: %s", name),
			"This page could not be copied from the uploaded file.",
			"Manual review required.",
		},
	}
}

func reconstructionPage(name string, page, total int) pdfops.PageSpec {
	return pdfops.PageSpec{
		Size:   pdfops.Letter,
		Banner: "PLACEHOLDER DUE TO CORRUPTION",
		Title:  fmt.Sprintf("Page %d of %d", page, total),
		Lines: []string{
			fmt.Sprintf("Document: %s", name),
			"This page is a placeholder. The uploaded file is corrupted and none of its",
			"content could be recovered automatically.",
			"",
			"To include the real content, open the original in a PDF viewer, print it to",
			"a new PDF file and upload that copy.",
		},
	}
}

func pageRange(from, to int) []int {
	if to < from {
		return nil
	}
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
