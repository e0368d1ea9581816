// Package paginate slices ordered result lists into fixed-size pages.
//
// Two entry points cover the two ways the app pages data:
//   - Paginate works on an in-memory slice.
//   - NewWindow turns a total row count into a LIMIT/OFFSET window, so the
//     database only returns one page of rows.
//
// Both clamp the requested page number into [1, TotalPages], so asking for
// page 0 or page 999 never fails.
package paginate

import "strconv"

// DefaultSize is the number of posts shown per page.
const DefaultSize = 10

// Page is one page of an ordered list.
type Page[T any] struct {
	Items      []T
	Number     int
	TotalPages int
	TotalItems int
	Size       int
}

func (p Page[T]) HasPrevious() bool { return p.Number > 1 }
func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages }
func (p Page[T]) PreviousNumber() int { return p.Number - 1 }
func (p Page[T]) NextNumber() int { return p.Number + 1 }

// HasOtherPages reports whether navigation links are worth rendering.
func (p Page[T]) HasOtherPages() bool { return p.TotalPages > 1 }

// Window is the clamped page position for a list of Total items.
type Window struct {
	Number     int
	TotalPages int
	Total      int
	Size       int
}

// Offset is the index of the first item on the page.
func (w Window) Offset() int { return (w.Number - 1) * w.Size }

// Limit is the page size.
func (w Window) Limit() int { return w.Size }

// NewWindow clamps number into the valid range for total items.
// size <= 0 falls back to DefaultSize. Zero items is one empty page.
func NewWindow(total, number, size int) Window {
	if size <= 0 {
		size = DefaultSize
	}
	if total < 0 {
		total = 0
	}

	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}

	switch {
	case number < 1:
		number = 1
	case number > pages:
		number = pages
	}

	return Window{Number: number, TotalPages: pages, Total: total, Size: size}
}

// Paginate returns page number of items.
func Paginate[T any](items []T, number, size int) Page[T] {
	w := NewWindow(len(items), number, size)

	start := w.Offset()
	end := min(start+w.Size, len(items))

	return Page[T]{
		Items:      items[start:end],
		Number:     w.Number,
		TotalPages: w.TotalPages,
		TotalItems: w.Total,
		Size:       w.Size,
	}
}

// FromWindow wraps items already fetched for w into a Page.
func FromWindow[T any](items []T, w Window) Page[T] {
	return Page[T]{
		Items:      items,
		Number:     w.Number,
		TotalPages: w.TotalPages,
		TotalItems: w.Total,
		Size:       w.Size,
	}
}

// ParseNumber reads a ?page= query value. Anything that is not a positive
// integer means page 1; values past the end are clamped later by NewWindow.
func ParseNumber(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 1
	}
	return n
}
