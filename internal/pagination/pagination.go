package pagination

import (
	"errors"
	"math"
	"strconv"
)

// Page is one slice of an ordered sequence.
type Page[T any] struct {
	Items       []T  `json:"items"`
	Number      int  `json:"number"`
	NumPages    int  `json:"num_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
	Total       int  `json:"total"`
}

// Paginate cuts items into pages of the given size and returns the page
// requested by token. It never fails:
//   - a token that is not a positive integer yields the first page
//   - a page number past the end yields the last page
//   - size < 1 puts everything on one page
//   - an empty sequence still has one (empty) page
func Paginate[T any](items []T, size int, token string) Page[T] {
	total := len(items)
	if size < 1 {
		size = max(total, 1)
	}

	numPages := (total + size - 1) / size
	if numPages == 0 {
		numPages = 1
	}

	number := ParsePageNumber(token)
	if number > numPages {
		number = numPages
	}

	start := (number - 1) * size
	end := min(start+size, total)

	pageItems := make([]T, 0, end-start)
	pageItems = append(pageItems, items[start:end]...)

	return Page[T]{
		Items:       pageItems,
		Number:      number,
		NumPages:    numPages,
		HasNext:     number < numPages,
		HasPrevious: number > 1,
		Total:       total,
	}
}

// ParsePageNumber returns the page number carried by token, or 1 when the
// token is not a positive integer. Positive numbers too big for an int
// come back as math.MaxInt so callers clamp them to the last page.
func ParsePageNumber(token string) int {
	n, err := strconv.Atoi(token)
	if errors.Is(err, strconv.ErrRange) && n > 0 {
		return math.MaxInt
	}
	if err != nil || n < 1 {
		return 1
	}
	return n
}
