package strategy

import (
	"fmt"
	"sort"

	"github.com/local/pdfconsolidator/internal/document"
)

// Orderings maps each pathology to the order strategies are tried in.
type Orderings map[document.Pathology][]Name

// DefaultOrderings: encrypted input goes to renderers and tools before local
// parsing, normal input is parsed locally first, and suspect input starts
// with reconstruction-oriented strategies.
var DefaultOrderings = Orderings{
	document.Encrypted: {
		ExternalPrintRender, ExternalStructureNormalize, ExternalRasterDistill,
		RelaxedLoad, PageByPageExtraction, DirectLoad, StructuralRepair, FullReconstruction,
	},
	document.Normal: {
		DirectLoad, RelaxedLoad, ExternalStructureNormalize, ExternalPrintRender,
		ExternalRasterDistill, PageByPageExtraction, StructuralRepair, FullReconstruction,
	},
	document.StructurallySuspect: {
		StructuralRepair, ExternalStructureNormalize, ExternalRasterDistill,
		RelaxedLoad, PageByPageExtraction, ExternalPrintRender, DirectLoad, FullReconstruction,
	},
}

// For returns the ordering of p, falling back to the Normal row.
func (o Orderings) For(p document.Pathology) []Name {
	if names, ok := o[p]; ok {
		return names
	}
	return o[document.Normal]
}

// Validate checks that every pathology has a row and that all rows are
// permutations of the full strategy set.
func (o Orderings) Validate() error {
	want := sortedNames(AllNames())
	for _, p := range document.Pathologies() {
		row, ok := o[p]
		if !ok {
			return fmt.Errorf("no ordering for pathology %s", p)
		}
		got := sortedNames(row)
		if len(got) != len(want) {
			return fmt.Errorf("ordering for %s has %d strategies, want %d", p, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				return fmt.Errorf("ordering for %s is not a permutation of the strategy set (%s vs %s)", p, got[i], want[i])
			}
		}
	}
	return nil
}

func sortedNames(in []Name) []Name {
	out := append([]Name(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
