package numbers

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCatalog(total, pageSize int) *Catalog {
	cands := make([]Candidate, total)
	for i := range cands {
		cands[i] = Candidate{
			Source: SourceReceiveSmsOnline,
			Phone:  fmt.Sprintf("+1555%04d", i),
		}
	}
	return &Catalog{Candidates: cands, PageSize: pageSize}
}

func TestCatalogPagination(t *testing.T) {
	catalog := testCatalog(17, 8)

	require.Equal(t, 17, catalog.Total())
	require.Equal(t, 3, catalog.PageCount())

	require.Len(t, catalog.Page(0), 8)
	require.Len(t, catalog.Page(1), 8)
	require.Len(t, catalog.Page(2), 1)

	require.Nil(t, catalog.Page(-1))
	require.Nil(t, catalog.Page(3))
}

func TestCatalogEmpty(t *testing.T) {
	catalog := testCatalog(0, 8)
	require.Equal(t, 0, catalog.Total())
	require.Equal(t, 0, catalog.PageCount())
	require.Nil(t, catalog.Page(0))
}

func TestCatalogAt(t *testing.T) {
	catalog := testCatalog(17, 8)

	// indices are catalog-absolute, not page-relative
	cand, ok := catalog.At(12)
	require.True(t, ok)
	require.Equal(t, "+15550012", cand.Phone)

	_, ok = catalog.At(17)
	require.False(t, ok)
	_, ok = catalog.At(-1)
	require.False(t, ok)
}
