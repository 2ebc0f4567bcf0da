// internal/app/store/storeutil/storeutil.go
package storeutil

import "go.mongodb.org/mongo-driver/mongo/options"

// Page is a clamped 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps number to at least 1 and size into [1, max], using def
// when size is not positive.
func NewPage(number, size, def, max int) Page {
	if number < 1 {
		number = 1
	}
	if size < 1 {
		size = def
	}
	if max > 0 && size > max {
		size = max
	}
	return Page{Number: number, Size: size}
}

// Skip is the number of documents before this page.
func (p Page) Skip() int64 {
	return int64((p.Number - 1) * p.Size)
}

// Paginate returns *options.FindOptions with skip/limit for p.
func (p Page) Paginate() *options.FindOptions {
	return options.Find().SetSkip(p.Skip()).SetLimit(int64(p.Size))
}

// TotalPages is the page count for total documents, never less than 1.
func (p Page) TotalPages(total int64) int {
	if p.Size < 1 || total <= 0 {
		return 1
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}
