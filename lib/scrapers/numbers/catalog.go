package numbers

// Catalog is the ordered, deduplicated result of one aggregation pass.
// It is immutable; the pagination cursor lives with the participant's
// session, not here.
type Catalog struct {
	Candidates []Candidate
	PageSize   int
}

func (c *Catalog) Total() int {
	return len(c.Candidates)
}

func (c *Catalog) PageCount() int {
	if c.PageSize <= 0 {
		return 0
	}
	return (len(c.Candidates) + c.PageSize - 1) / c.PageSize
}

// Page returns the candidates on the given page, or nil when the page
// index is out of bounds.
func (c *Catalog) Page(index int) []Candidate {
	if index < 0 || index >= c.PageCount() {
		return nil
	}
	start := index * c.PageSize
	end := start + c.PageSize
	if end > len(c.Candidates) {
		end = len(c.Candidates)
	}
	return c.Candidates[start:end]
}

// At looks up a candidate by its catalog-absolute index. Selection
// indices are absolute, not page-relative.
func (c *Catalog) At(index int) (Candidate, bool) {
	if index < 0 || index >= len(c.Candidates) {
		return Candidate{}, false
	}
	return c.Candidates[index], true
}
