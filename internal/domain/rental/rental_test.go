package rental

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentdesk/internal/domain/catalog"
	"rentdesk/internal/domain/pricing"
	"rentdesk/internal/domain/shared/daterange"
	"rentdesk/internal/domain/shared/money"
)

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func testWindow(t *testing.T) daterange.DateRange {
	t.Helper()
	w, err := daterange.New(testNow, testNow.Add(5*24*time.Hour))
	require.NoError(t, err)
	return w
}

func quotation(t *testing.T, itemCount int) *Rental {
	t.Helper()
	product, err := catalog.NewProduct("prd-1", "SKU-1", "Excavator", 10, testNow)
	require.NoError(t, err)

	params := CreateParams{
		ID:          "rnt-1",
		CustomerID:  "cus-1",
		PricelistID: "pl-1",
		Rates:       pricing.DefaultRates(),
		CreatedAt:   testNow,
	}
	for i := 0; i < itemCount; i++ {
		params.Items = append(params.Items, ItemParams{
			ID:         ItemID(string(rune('a' + i))),
			Product:    product,
			Quantity:   2,
			RentalType: pricing.Daily,
			Window:     testWindow(t),
			Quote: pricing.Quote{
				UnitPrice:  money.Must(10000, "USD"),
				TotalPrice: money.Must(100000, "USD"),
				Units:      5,
			},
		})
	}
	r, err := NewQuotation(params)
	require.NoError(t, err)
	r.ClearEvents()
	return r
}

func TestNewQuotationValidation(t *testing.T) {
	product, err := catalog.NewProduct("prd-1", "SKU-1", "Excavator", 3, testNow)
	require.NoError(t, err)

	base := CreateParams{
		ID: "rnt-1", CustomerID: "cus-1", PricelistID: "pl-1",
		Rates: pricing.DefaultRates(), CreatedAt: testNow,
	}

	_, err = NewQuotation(base)
	assert.ErrorIs(t, err, ErrNoItems)

	params := base
	params.Items = []ItemParams{{ID: "a", Product: product, Quantity: 0, RentalType: pricing.Daily, Window: testWindow(t)}}
	_, err = NewQuotation(params)
	assert.ErrorIs(t, err, ErrInvalidItemQuantity)

	params.Items[0].Quantity = 4
	_, err = NewQuotation(params)
	assert.ErrorIs(t, err, ErrQuantityExceedsFleet)
}

func TestNewQuotationStartsUnbound(t *testing.T) {
	r := quotation(t, 2)
	assert.Equal(t, StatusQuotation, r.FulfillmentStatus)
	assert.Equal(t, InvoiceNothing, r.InvoiceStatus())
	assert.False(t, r.FulfillmentStatus.Committed())

	// totals derive from the snapshot subtotal
	assert.Equal(t, int64(200000), r.Totals.Subtotal.Amount)
	assert.Equal(t, int64(40000), r.Totals.SecurityDeposit.Amount)
	assert.Equal(t, int64(16000), r.Totals.Tax.Amount)
	assert.Equal(t, int64(256000), r.Totals.GrandTotal.Amount)
}

func TestFulfillmentHappyPath(t *testing.T) {
	r := quotation(t, 1)

	require.NoError(t, r.MarkSent(testNow))
	assert.Equal(t, StatusQuotationSent, r.FulfillmentStatus)

	require.NoError(t, r.Reserve(testNow))
	assert.Equal(t, StatusReserved, r.FulfillmentStatus)
	assert.True(t, r.FulfillmentStatus.Committed())

	pickupAt := testNow.Add(24 * time.Hour)
	require.NoError(t, r.PickUp(pickupAt))
	assert.Equal(t, StatusPickedUp, r.FulfillmentStatus)
	require.NotNil(t, r.PickedUpAt)
	assert.Equal(t, pickupAt, *r.PickedUpAt)

	returnAt := testNow.Add(5 * 24 * time.Hour)
	require.NoError(t, r.Return(returnAt))
	assert.Equal(t, StatusReturned, r.FulfillmentStatus)
	require.NotNil(t, r.ReturnedAt)
	assert.Equal(t, returnAt, *r.ReturnedAt)
	assert.False(t, r.FulfillmentStatus.Committed())
}

func TestIllegalTransitions(t *testing.T) {
	r := quotation(t, 1)

	// cannot skip to pickup or return from a quotation
	assert.ErrorIs(t, r.PickUp(testNow), ErrIllegalTransition)
	assert.ErrorIs(t, r.Return(testNow), ErrIllegalTransition)

	require.NoError(t, r.Reserve(testNow))
	// no path back to quotation states
	assert.ErrorIs(t, r.MarkSent(testNow), ErrIllegalTransition)
	assert.ErrorIs(t, r.Reserve(testNow), ErrIllegalTransition)
	assert.ErrorIs(t, r.TransitionTo(StatusQuotation, testNow), ErrIllegalTransition)

	require.NoError(t, r.PickUp(testNow))
	require.NoError(t, r.Return(testNow))

	// terminal states are final
	assert.ErrorIs(t, r.Cancel("late", testNow), ErrIllegalTransition)
	assert.ErrorIs(t, r.PickUp(testNow), ErrIllegalTransition)
}

func TestTransitionToUnknownStatus(t *testing.T) {
	r := quotation(t, 1)
	assert.ErrorIs(t, r.TransitionTo(FulfillmentStatus("LOST"), testNow), ErrUnknownFulfillmentStatus)
}

func TestCancelReportsInventoryRelease(t *testing.T) {
	quoted := quotation(t, 1)
	require.NoError(t, quoted.Cancel("customer changed plans", testNow))
	events := quoted.PendingEvents()
	require.Len(t, events, 1)
	cancelled, ok := events[0].(RentalCancelled)
	require.True(t, ok)
	assert.False(t, cancelled.ReleasedInventory)

	reserved := quotation(t, 1)
	require.NoError(t, reserved.Reserve(testNow))
	reserved.ClearEvents()
	require.NoError(t, reserved.Cancel("site flooded", testNow))
	events = reserved.PendingEvents()
	require.Len(t, events, 1)
	cancelled, ok = events[0].(RentalCancelled)
	require.True(t, ok)
	assert.True(t, cancelled.ReleasedInventory)
}

func TestInvoiceRollUp(t *testing.T) {
	r := quotation(t, 2)
	assert.Equal(t, InvoiceNothing, r.InvoiceStatus())

	require.NoError(t, r.MarkItemsInvoiced([]ItemID{"a"}, testNow))
	assert.Equal(t, InvoicePending, r.InvoiceStatus())

	require.NoError(t, r.MarkItemsInvoiced([]ItemID{"b"}, testNow))
	assert.Equal(t, InvoicePending, r.InvoiceStatus())

	require.NoError(t, r.MarkItemsPaid([]ItemID{"a"}, testNow))
	assert.Equal(t, InvoicePending, r.InvoiceStatus())

	require.NoError(t, r.MarkItemsPaid([]ItemID{"b"}, testNow))
	assert.Equal(t, InvoiceFull, r.InvoiceStatus())
}

func TestInvoiceStatusOnlyMovesForward(t *testing.T) {
	r := quotation(t, 1)

	// cannot pay before an invoice exists
	assert.ErrorIs(t, r.MarkItemsPaid(nil, testNow), ErrIllegalInvoiceTransition)

	require.NoError(t, r.MarkItemsInvoiced(nil, testNow))
	// invoicing twice is illegal
	assert.ErrorIs(t, r.MarkItemsInvoiced(nil, testNow), ErrIllegalInvoiceTransition)

	require.NoError(t, r.MarkItemsPaid(nil, testNow))
	assert.ErrorIs(t, r.MarkItemsPaid(nil, testNow), ErrIllegalInvoiceTransition)
}

func TestInvoiceShiftUnknownItem(t *testing.T) {
	r := quotation(t, 1)
	assert.ErrorIs(t, r.MarkItemsInvoiced([]ItemID{"nope"}, testNow), ErrItemNotFound)
}

func TestInvoiceStatusIndependentOfFulfillment(t *testing.T) {
	r := quotation(t, 1)
	require.NoError(t, r.Reserve(testNow))
	require.NoError(t, r.MarkItemsInvoiced(nil, testNow))
	require.NoError(t, r.PickUp(testNow))
	require.NoError(t, r.MarkItemsPaid(nil, testNow))
	require.NoError(t, r.Return(testNow))

	assert.Equal(t, StatusReturned, r.FulfillmentStatus)
	assert.Equal(t, InvoiceFull, r.InvoiceStatus())
}

func TestItemPricesAreSnapshots(t *testing.T) {
	r := quotation(t, 1)
	before := r.Items[0].UnitPrice

	// lifecycle transitions never touch the captured prices
	require.NoError(t, r.Reserve(testNow))
	require.NoError(t, r.PickUp(testNow))
	assert.Equal(t, before, r.Items[0].UnitPrice)
	assert.Equal(t, int64(100000), r.Items[0].TotalPrice.Amount)
}

func TestMixedCurrenciesRejected(t *testing.T) {
	product, err := catalog.NewProduct("prd-1", "SKU-1", "Excavator", 10, testNow)
	require.NoError(t, err)
	w := testWindow(t)

	_, err = NewQuotation(CreateParams{
		ID: "rnt-1", CustomerID: "cus-1", PricelistID: "pl-1",
		Rates: pricing.DefaultRates(), CreatedAt: testNow,
		Items: []ItemParams{
			{ID: "a", Product: product, Quantity: 1, RentalType: pricing.Daily, Window: w,
				Quote: pricing.Quote{UnitPrice: money.Must(100, "USD"), TotalPrice: money.Must(500, "USD")}},
			{ID: "b", Product: product, Quantity: 1, RentalType: pricing.Daily, Window: w,
				Quote: pricing.Quote{UnitPrice: money.Must(100, "EUR"), TotalPrice: money.Must(500, "EUR")}},
		},
	})
	assert.ErrorIs(t, err, ErrMixedItemCurrencies)
}
