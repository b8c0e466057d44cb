package catalog

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrInvalidQuantity = errors.New("catalog: total quantity must be positive")
)

type ProductID string

// Product describes a rentable equipment line: how many physical units the
// business owns and the hard policy bounds on rental length. Pricing lives
// in the pricelist, not here.
type Product struct {
	ID            ProductID
	SKU           string
	Name          string
	TotalQuantity int
	// MinimumRentalDays/MaximumRentalDays are product-level defaults; a
	// pricelist item may override them per rental type. Zero means unset.
	MinimumRentalDays int
	MaximumRentalDays int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewProduct validates the minimal invariants for a product entry.
func NewProduct(id ProductID, sku, name string, totalQuantity int, now time.Time) (*Product, error) {
	if strings.TrimSpace(string(id)) == "" {
		return nil, errors.New("catalog: product id required")
	}
	if totalQuantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	now = now.UTC()
	return &Product{
		ID:            id,
		SKU:           strings.TrimSpace(sku),
		Name:          strings.TrimSpace(name),
		TotalQuantity: totalQuantity,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Repository provides product lookups for availability and pricing checks.
type Repository interface {
	ByID(ctx context.Context, id ProductID) (*Product, error)
	Save(ctx context.Context, product *Product) error
}
