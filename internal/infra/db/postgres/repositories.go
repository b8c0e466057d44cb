package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"rentdesk/internal/app/uow"
	"rentdesk/internal/domain/availability"
	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/rental"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

type productRepo struct {
	tx *sql.Tx
}

func (r productRepo) ByID(ctx context.Context, id catalog.ProductID) (*catalog.Product, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, sku, name, total_quantity, min_rental_days, max_rental_days, created_at, updated_at
		FROM products WHERE id = $1`, string(id))
	var p catalog.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.TotalQuantity, &p.MinimumRentalDays, &p.MaximumRentalDays, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load product: %w", mapError(err))
	}
	return &p, nil
}

func (r productRepo) Save(ctx context.Context, product *catalog.Product) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, total_quantity, min_rental_days, max_rental_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			sku = EXCLUDED.sku,
			name = EXCLUDED.name,
			total_quantity = EXCLUDED.total_quantity,
			min_rental_days = EXCLUDED.min_rental_days,
			max_rental_days = EXCLUDED.max_rental_days,
			updated_at = EXCLUDED.updated_at`,
		string(product.ID), product.SKU, product.Name, product.TotalQuantity,
		product.MinimumRentalDays, product.MaximumRentalDays, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: save product: %w", mapError(err))
	}
	return nil
}

type rateRepo struct {
	tx *sql.Tx
}

func (r rateRepo) Resolve(ctx context.Context, pricelistID pricing.PricelistID, productID catalog.ProductID, rentalType pricing.RentalType) (pricing.PricelistItem, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT pricelist_id, product_id, rental_type, price_amount, discount_amount, currency, min_days, max_days
		FROM pricelist_items
		WHERE pricelist_id = $1 AND product_id = $2 AND rental_type = $3`,
		string(pricelistID), string(productID), string(rentalType))
	var (
		item           pricing.PricelistItem
		priceAmount    int64
		discountAmount int64
		currency       string
	)
	err := row.Scan(&item.PricelistID, &item.ProductID, &item.RentalType,
		&priceAmount, &discountAmount, &currency, &item.MinimumDays, &item.MaximumDays)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.PricelistItem{}, pricing.ErrRateNotFound
	}
	if err != nil {
		return pricing.PricelistItem{}, fmt.Errorf("postgres: resolve rate: %w", mapError(err))
	}
	item.Price = money.Money{Amount: priceAmount, Currency: currency}
	item.Discount = money.Money{Amount: discountAmount, Currency: currency}
	return item, nil
}

func (r rateRepo) ActiveForTier(ctx context.Context, tier pricing.CustomerTier) (*pricing.Pricelist, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, name, tier, active FROM pricelists
		WHERE active AND tier = $1
		ORDER BY id
		LIMIT 1`, string(tier))
	var list pricing.Pricelist
	err := row.Scan(&list.ID, &list.Name, &list.Tier, &list.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pricing.ErrRateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: active pricelist: %w", mapError(err))
	}
	return &list, nil
}

type rentalRepo struct {
	tx *sql.Tx
}

func (r rentalRepo) ByID(ctx context.Context, id rental.RentalID) (*rental.Rental, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, customer_id, pricelist_id, fulfillment_status,
		       subtotal_amount, deposit_amount, tax_amount, grand_total_amount, currency,
		       picked_up_at, returned_at, created_at, updated_at, version
		FROM rentals WHERE id = $1`, string(id))
	booked, err := scanRental(row)
	if err != nil {
		return nil, err
	}
	items, err := r.loadItems(ctx, booked.ID)
	if err != nil {
		return nil, err
	}
	booked.Items = items
	return booked, nil
}

func (r rentalRepo) ListByCustomer(ctx context.Context, customerID string) ([]*rental.Rental, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, customer_id, pricelist_id, fulfillment_status,
		       subtotal_amount, deposit_amount, tax_amount, grand_total_amount, currency,
		       picked_up_at, returned_at, created_at, updated_at, version
		FROM rentals WHERE customer_id = $1
		ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rentals: %w", mapError(err))
	}
	defer rows.Close()

	var out []*rental.Rental
	for rows.Next() {
		booked, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, booked)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list rentals: %w", mapError(err))
	}
	for _, booked := range out {
		items, err := r.loadItems(ctx, booked.ID)
		if err != nil {
			return nil, err
		}
		booked.Items = items
	}
	return out, nil
}

// Save upserts the aggregate with an optimistic version guard. A concurrent
// writer bumping the version first turns this save into a retryable
// serialization conflict.
func (r rentalRepo) Save(ctx context.Context, booked *rental.Rental) error {
	newVersion := booked.Version + 1
	res, err := r.tx.ExecContext(ctx, `
		INSERT INTO rentals (id, customer_id, pricelist_id, fulfillment_status,
			subtotal_amount, deposit_amount, tax_amount, grand_total_amount, currency,
			picked_up_at, returned_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			fulfillment_status = EXCLUDED.fulfillment_status,
			subtotal_amount = EXCLUDED.subtotal_amount,
			deposit_amount = EXCLUDED.deposit_amount,
			tax_amount = EXCLUDED.tax_amount,
			grand_total_amount = EXCLUDED.grand_total_amount,
			currency = EXCLUDED.currency,
			picked_up_at = EXCLUDED.picked_up_at,
			returned_at = EXCLUDED.returned_at,
			updated_at = EXCLUDED.updated_at,
			version = EXCLUDED.version
		WHERE rentals.version = EXCLUDED.version - 1`,
		string(booked.ID), booked.CustomerID, string(booked.PricelistID), string(booked.FulfillmentStatus),
		booked.Totals.Subtotal.Amount, booked.Totals.SecurityDeposit.Amount,
		booked.Totals.Tax.Amount, booked.Totals.GrandTotal.Amount, booked.Totals.Subtotal.Currency,
		booked.PickedUpAt, booked.ReturnedAt, booked.CreatedAt, booked.UpdatedAt, newVersion)
	if err != nil {
		return fmt.Errorf("postgres: save rental: %w", mapError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: save rental: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("postgres: save rental %s: %w", booked.ID, errors.Join(uow.ErrSerialization, errStaleVersion))
	}
	booked.Version = newVersion

	if _, err := r.tx.ExecContext(ctx, `DELETE FROM rental_items WHERE rental_id = $1`, string(booked.ID)); err != nil {
		return fmt.Errorf("postgres: replace rental items: %w", mapError(err))
	}
	for _, item := range booked.Items {
		if _, err := r.tx.ExecContext(ctx, `
			INSERT INTO rental_items (id, rental_id, product_id, quantity, rental_type,
				start_date, end_date, unit_price_amount, total_price_amount, currency, invoice_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			string(item.ID), string(booked.ID), string(item.ProductID), item.Quantity, string(item.RentalType),
			item.Window.Start, item.Window.End, item.UnitPrice.Amount, item.TotalPrice.Amount,
			item.UnitPrice.Currency, string(item.InvoiceStatus)); err != nil {
			return fmt.Errorf("postgres: save rental item: %w", mapError(err))
		}
	}
	return nil
}

func (r rentalRepo) loadItems(ctx context.Context, id rental.RentalID) ([]rental.Item, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, product_id, quantity, rental_type, start_date, end_date,
		       unit_price_amount, total_price_amount, currency, invoice_status
		FROM rental_items WHERE rental_id = $1
		ORDER BY id`, string(id))
	if err != nil {
		return nil, fmt.Errorf("postgres: load rental items: %w", mapError(err))
	}
	defer rows.Close()

	var items []rental.Item
	for rows.Next() {
		var (
			item             rental.Item
			start, end       sql.NullTime
			unitAmount       int64
			totalAmount      int64
			currency         string
		)
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.RentalType,
			&start, &end, &unitAmount, &totalAmount, &currency, &item.InvoiceStatus); err != nil {
			return nil, fmt.Errorf("postgres: scan rental item: %w", err)
		}
		window, err := daterange.New(start.Time, end.Time)
		if err != nil {
			return nil, fmt.Errorf("postgres: rental item %s: %w", item.ID, err)
		}
		item.Window = window
		item.UnitPrice = money.Money{Amount: unitAmount, Currency: currency}
		item.TotalPrice = money.Money{Amount: totalAmount, Currency: currency}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load rental items: %w", mapError(err))
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRental(row rowScanner) (*rental.Rental, error) {
	var (
		booked               rental.Rental
		subtotal             int64
		deposit              int64
		tax                  int64
		grandTotal           int64
		currency             string
		pickedUp, returnedAt sql.NullTime
	)
	err := row.Scan(&booked.ID, &booked.CustomerID, &booked.PricelistID, &booked.FulfillmentStatus,
		&subtotal, &deposit, &tax, &grandTotal, &currency,
		&pickedUp, &returnedAt, &booked.CreatedAt, &booked.UpdatedAt, &booked.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rental.ErrRentalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan rental: %w", mapError(err))
	}
	booked.Totals = pricing.Totals{
		Subtotal:        money.Money{Amount: subtotal, Currency: currency},
		SecurityDeposit: money.Money{Amount: deposit, Currency: currency},
		Tax:             money.Money{Amount: tax, Currency: currency},
		GrandTotal:      money.Money{Amount: grandTotal, Currency: currency},
	}
	if pickedUp.Valid {
		t := pickedUp.Time
		booked.PickedUpAt = &t
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		booked.ReturnedAt = &t
	}
	return &booked, nil
}

type commitmentRepo struct {
	tx *sql.Tx
}

// CommittedUnits sums RESERVED and PICKED_UP item quantities overlapping the
// half-open window. The predicate mirrors daterange.Overlaps.
func (r commitmentRepo) CommittedUnits(ctx context.Context, productID catalog.ProductID, window daterange.DateRange) (int, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(ri.quantity), 0)
		FROM rental_items ri
		JOIN rentals re ON re.id = ri.rental_id
		WHERE ri.product_id = $1
		  AND re.fulfillment_status IN ('RESERVED', 'PICKED_UP')
		  AND ri.start_date < $3
		  AND ri.end_date > $2`,
		string(productID), window.Start, window.End)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("postgres: committed units: %w", mapError(err))
	}
	return total, nil
}

var errStaleVersion = errors.New("postgres: stale rental version")

var (
	_ catalog.Repository      = productRepo{}
	_ pricing.Resolver        = rateRepo{}
	_ rental.Repository       = rentalRepo{}
	_ availability.Repository = commitmentRepo{}
)
