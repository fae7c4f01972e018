package shared

// Page is a normalised paging window for timeline listings.
type Page struct {
	Number  int
	PerPage int
}

// ClampPage normalises caller-supplied paging input: non-positive values
// fall back to def, and per-page is capped at max.
func ClampPage(number, perPage, def, max int) Page {
	if perPage <= 0 {
		perPage = def
	}
	if max > 0 && perPage > max {
		perPage = max
	}
	if number <= 0 {
		number = 1
	}
	return Page{Number: number, PerPage: perPage}
}

// Offset returns the row offset of the window.
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}
