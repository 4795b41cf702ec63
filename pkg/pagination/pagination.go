package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Hard ceiling on page size regardless of configuration.
const MaxPageSize = 100

// Page carries normalised offset-pagination parameters.
type Page struct {
	Number int
	Size   int
}

// NewPage clamps raw pagination input to [1, maxSize] with a default size.
func NewPage(number, size, defaultSize, maxSize int) Page {
	if maxSize <= 0 || maxSize > MaxPageSize {
		maxSize = MaxPageSize
	}
	if defaultSize <= 0 || defaultSize > maxSize {
		defaultSize = maxSize
	}
	if number < 1 {
		number = 1
	}
	if size <= 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	return Page{Number: number, Size: size}
}

// Offset returns the SQL offset for the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Limit returns the SQL limit for the page.
func (p Page) Limit() int {
	return p.Size
}

// Meta is the offset-pagination metadata returned with list responses.
type Meta struct {
	CurrentPage  int  `json:"current_page"`
	TotalPages   int  `json:"total_pages"`
	TotalItems   int  `json:"total_items"`
	PageSize     int  `json:"page_size"`
	HasNext      bool `json:"has_next"`
	HasPrevious  bool `json:"has_previous"`
	NextPage     *int `json:"next_page,omitempty"`
	PreviousPage *int `json:"previous_page,omitempty"`
}

// NewMeta derives offset metadata from a page and the total row count.
func NewMeta(page Page, totalItems int) *Meta {
	if totalItems < 0 {
		totalItems = 0
	}
	totalPages := 0
	if totalItems > 0 {
		totalPages = (totalItems + page.Size - 1) / page.Size
	}
	meta := &Meta{
		CurrentPage: page.Number,
		TotalPages:  totalPages,
		TotalItems:  totalItems,
		PageSize:    page.Size,
		HasNext:     page.Number < totalPages,
		HasPrevious: page.Number > 1 && totalPages > 0,
	}
	if meta.HasNext {
		next := page.Number + 1
		meta.NextPage = &next
	}
	if meta.HasPrevious {
		prev := page.Number - 1
		meta.PreviousPage = &prev
	}
	return meta
}

// CursorMeta is the metadata returned with cursor-paginated responses.
type CursorMeta struct {
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	PageSize   int    `json:"page_size"`
	ItemCount  int    `json:"item_count"`
}

// EncodeCursor produces an opaque cursor for "field strictly greater than value".
func EncodeCursor(field, value string) string {
	if value == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(field + ":" + value))
}

// DecodeCursor reverses EncodeCursor.
func DecodeCursor(raw string) (field, value string, err error) {
	if raw == "" {
		return "", "", nil
	}
	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return "", "", fmt.Errorf("decode cursor: %w", err)
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed cursor")
	}
	return parts[0], parts[1], nil
}

// Sort holds a validated sort column and direction.
type Sort struct {
	Column     string
	Descending bool
}

// OrderBy renders the SQL ORDER BY fragment.
func (s Sort) OrderBy() string {
	direction := "ASC"
	if s.Descending {
		direction = "DESC"
	}
	return s.Column + " " + direction
}

// ParseSort maps a requested sort key onto an allowlisted column.
// Unknown keys fall back to the provided default column, descending.
func ParseSort(sortBy, order string, allowed map[string]string, fallback string) Sort {
	column, ok := allowed[sortBy]
	if !ok || column == "" {
		column = fallback
	}
	sort := Sort{Column: column}
	switch strings.ToUpper(strings.TrimSpace(order)) {
	case "ASC":
		sort.Descending = false
	case "DESC":
		sort.Descending = true
	default:
		sort.Descending = true
	}
	return sort
}
