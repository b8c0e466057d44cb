package memory

import (
	"sync"

	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/rental"
)

type rateKey struct {
	Pricelist  pricing.PricelistID
	Product    catalog.ProductID
	RentalType pricing.RentalType
}

// Store is the process-local backend used in memory mode and in tests. All
// committed state lives here; units of work stage writes and apply them under
// the store mutex on commit.
type Store struct {
	mu         sync.RWMutex
	products   map[catalog.ProductID]*catalog.Product
	pricelists map[pricing.PricelistID]*pricing.Pricelist
	rates      map[rateKey]pricing.PricelistItem
	rentals    map[rental.RentalID]*rental.Rental

	locks *lockManager
}

func NewStore() *Store {
	return &Store{
		products:   make(map[catalog.ProductID]*catalog.Product),
		pricelists: make(map[pricing.PricelistID]*pricing.Pricelist),
		rates:      make(map[rateKey]pricing.PricelistItem),
		rentals:    make(map[rental.RentalID]*rental.Rental),
		locks:      newLockManager(),
	}
}

// SeedProduct installs a product directly, bypassing the unit of work. Meant
// for bootstrap and tests.
func (s *Store) SeedProduct(product *catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *product
	s.products[product.ID] = &clone
}

func (s *Store) SeedPricelist(list *pricing.Pricelist) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *list
	s.pricelists[list.ID] = &clone
}

func (s *Store) SeedRate(item pricing.PricelistItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[rateKey{Pricelist: item.PricelistID, Product: item.ProductID, RentalType: item.RentalType}] = item
}

func cloneRental(r *rental.Rental) *rental.Rental {
	clone := *r
	clone.Items = append([]rental.Item(nil), r.Items...)
	if r.PickedUpAt != nil {
		t := *r.PickedUpAt
		clone.PickedUpAt = &t
	}
	if r.ReturnedAt != nil {
		t := *r.ReturnedAt
		clone.ReturnedAt = &t
	}
	clone.ClearEvents()
	return &clone
}
