package memory

import (
	"context"
	"sort"

	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/rental"
	"rentdesk/internal/domain/shared/daterange"
)

type productRepo struct {
	unit *Unit
}

func (r productRepo) ByID(ctx context.Context, id catalog.ProductID) (*catalog.Product, error) {
	if staged, ok := r.unit.stagedProducts[id]; ok {
		clone := *staged
		return &clone, nil
	}
	r.unit.store.mu.RLock()
	defer r.unit.store.mu.RUnlock()
	product, ok := r.unit.store.products[id]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

func (r productRepo) Save(ctx context.Context, product *catalog.Product) error {
	clone := *product
	r.unit.stagedProducts[product.ID] = &clone
	return nil
}

type rateRepo struct {
	unit *Unit
}

func (r rateRepo) Resolve(ctx context.Context, pricelistID pricing.PricelistID, productID catalog.ProductID, rentalType pricing.RentalType) (pricing.PricelistItem, error) {
	r.unit.store.mu.RLock()
	defer r.unit.store.mu.RUnlock()
	item, ok := r.unit.store.rates[rateKey{Pricelist: pricelistID, Product: productID, RentalType: rentalType}]
	if !ok {
		return pricing.PricelistItem{}, pricing.ErrRateNotFound
	}
	return item, nil
}

func (r rateRepo) ActiveForTier(ctx context.Context, tier pricing.CustomerTier) (*pricing.Pricelist, error) {
	r.unit.store.mu.RLock()
	defer r.unit.store.mu.RUnlock()
	ids := make([]pricing.PricelistID, 0, len(r.unit.store.pricelists))
	for id := range r.unit.store.pricelists {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		list := r.unit.store.pricelists[id]
		if list.Active && list.Tier == tier {
			clone := *list
			return &clone, nil
		}
	}
	return nil, pricing.ErrRateNotFound
}

type rentalRepo struct {
	unit *Unit
}

func (r rentalRepo) ByID(ctx context.Context, id rental.RentalID) (*rental.Rental, error) {
	if staged, ok := r.unit.stagedRentals[id]; ok {
		return cloneRental(staged), nil
	}
	r.unit.store.mu.RLock()
	defer r.unit.store.mu.RUnlock()
	stored, ok := r.unit.store.rentals[id]
	if !ok {
		return nil, rental.ErrRentalNotFound
	}
	if _, loaded := r.unit.loadedVersions[id]; !loaded {
		r.unit.loadedVersions[id] = stored.Version
	}
	return cloneRental(stored), nil
}

func (r rentalRepo) Save(ctx context.Context, booked *rental.Rental) error {
	staged := cloneRental(booked)
	staged.Version++
	r.unit.stagedRentals[booked.ID] = staged
	return nil
}

func (r rentalRepo) ListByCustomer(ctx context.Context, customerID string) ([]*rental.Rental, error) {
	r.unit.store.mu.RLock()
	defer r.unit.store.mu.RUnlock()
	var out []*rental.Rental
	for _, stored := range r.unit.store.rentals {
		if stored.CustomerID == customerID {
			out = append(out, cloneRental(stored))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type commitmentRepo struct {
	unit *Unit
}

// CommittedUnits sums quantities of RESERVED and PICKED_UP items whose
// half-open windows overlap the requested one. Staged rentals of this unit
// count too, so multi-save transactions observe their own writes.
func (r commitmentRepo) CommittedUnits(ctx context.Context, productID catalog.ProductID, window daterange.DateRange) (int, error) {
	total := 0
	seen := make(map[rental.RentalID]struct{}, len(r.unit.stagedRentals))
	for id, staged := range r.unit.stagedRentals {
		seen[id] = struct{}{}
		total += committedUnitsOf(staged, productID, window)
	}
	r.unit.store.mu.RLock()
	defer r.unit.store.mu.RUnlock()
	for id, stored := range r.unit.store.rentals {
		if _, shadowed := seen[id]; shadowed {
			continue
		}
		total += committedUnitsOf(stored, productID, window)
	}
	return total, nil
}

func committedUnitsOf(r *rental.Rental, productID catalog.ProductID, window daterange.DateRange) int {
	if !r.FulfillmentStatus.Committed() {
		return 0
	}
	total := 0
	for _, item := range r.Items {
		if item.ProductID == productID && item.Window.Overlaps(window) {
			total += item.Quantity
		}
	}
	return total
}

var (
	_ catalog.Repository      = productRepo{}
	_ pricing.Resolver        = rateRepo{}
	_ rental.Repository       = rentalRepo{}
	_ availability.Repository = commitmentRepo{}
)
