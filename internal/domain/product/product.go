package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Pagination defaults and bounds for catalog listing.
const (
	DefaultLimit = 12
	MaxLimit     = 100
)

// Product represents a catalog item available for purchase. Products are
// owned by the catalog and read-only for the storefront.
type Product struct {
	ID                 int64
	Name               string
	Description        string
	Price              decimal.Decimal
	Category           string
	Stock              int
	Images             []string
	Thumbnail          string
	Rating             float64
	DiscountPercentage float64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Image returns the primary image: the thumbnail, or the first gallery image.
func (p Product) Image() string {
	if p.Thumbnail != "" {
		return p.Thumbnail
	}
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}

// Filter narrows a catalog listing. Zero values mean "no constraint".
type Filter struct {
	Search   string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	Limit    int
}

// Normalize clamps pagination to a 1-based page and a bounded limit.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	return f
}

// Offset returns the number of rows to skip for the filter's page.
func (f Filter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination describes the position of a Page within the full listing.
type Pagination struct {
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// NewPagination computes TotalPages for total matching rows.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// Page is one page of a filtered catalog listing.
type Page struct {
	Items      []Product
	Pagination Pagination
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context, f Filter) (*Page, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	Categories(ctx context.Context) ([]string, error)
}
