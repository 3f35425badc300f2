package pdfdoc

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// CountPages returns the page count without extracting text.
func CountPages(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// ValidPages drops page numbers outside 1..count, sorts and de-duplicates the rest.
func ValidPages(pages []int, count int) []int {
	valid := make([]int, 0, len(pages))
	for _, p := range pages {
		if p >= 1 && p <= count {
			valid = append(valid, p)
		}
	}
	slices.Sort(valid)
	return slices.Compact(valid)
}

// ExtractPages writes a new PDF holding only the given pages, in ascending order.
// Out of range page numbers are ignored; an empty selection returns nil.
func ExtractPages(data []byte, pages []int) ([]byte, error) {
	count, err := CountPages(data)
	if err != nil {
		return nil, err
	}
	valid := ValidPages(pages, count)
	if len(valid) == 0 {
		return nil, nil
	}

	selected := make([]string, len(valid))
	for i, p := range valid {
		selected[i] = strconv.Itoa(p)
	}
	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &out, selected, newConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to extract pages %v: %w", valid, err)
	}
	return out.Bytes(), nil
}

// Merge concatenates PDFs in order.
func Merge(parts [][]byte) ([]byte, error) {
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	}
	readers := make([]io.ReadSeeker, len(parts))
	for i, p := range parts {
		readers[i] = bytes.NewReader(p)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, newConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to merge %d PDFs: %w", len(parts), err)
	}
	return out.Bytes(), nil
}
