package product

import (
	"github.com/angelmondragon/angkor-storefront/pkg/pagination"
)

// ListProductsInput captures the inputs needed to page through the catalog.
type ListProductsInput struct {
	Query      string
	ActiveOnly bool
	Pagination pagination.Params
}

// ProductListResult is one page of products plus the cursor for the next.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
