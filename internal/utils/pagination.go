// Package utils holds small helpers shared by the HTTP and search layers.
package utils

import "strconv"

// AtoiDefault parses s, returning def when s is empty or not an integer.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Window locates a 1-based page of size items within total items. Pages
// below 1 are treated as 1; pages past the end yield an empty window
// (start == end == total).
func Window(total, page, size int) (start, end, pages, clamped int) {
	if size <= 0 {
		size = 1
	}
	if page < 1 {
		page = 1
	}
	pages = (total + size - 1) / size
	// compare before multiplying: a huge page would overflow (page-1)*size
	if page > pages {
		return total, total, pages, page
	}
	start = (page - 1) * size
	end = start + size
	if end > total {
		end = total
	}
	return start, end, pages, page
}
