package booking

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"rentdesk/internal/app/dto"
	"rentdesk/internal/app/handlers/support"
	"rentdesk/internal/app/queries"
	"rentdesk/internal/app/uow"
	domainrental "rentdesk/internal/domain/rental"
)

const (
	getRentalKey           = "rentals.get"
	listCustomerRentalsKey = "rentals.list_by_customer"

	allStatusesFilterValue = "ALL"
)

type GetRentalQuery struct {
	RentalID string
}

func (q GetRentalQuery) Key() string { return getRentalKey }

type GetRentalHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetRentalHandler) Handle(ctx context.Context, q GetRentalQuery) (dto.RentalView, error) {
	if strings.TrimSpace(q.RentalID) == "" {
		return dto.RentalView{}, errors.New("booking: rental id is required")
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.RentalView{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	booked, err := unit.Rentals().ByID(execCtx, domainrental.RentalID(q.RentalID))
	if err != nil {
		return dto.RentalView{}, err
	}
	return dto.MapRental(booked), nil
}

type ListCustomerRentalsQuery struct {
	CustomerID string
	Status     string
}

func (q ListCustomerRentalsQuery) Key() string { return listCustomerRentalsKey }

type ListCustomerRentalsHandler struct {
	UoWFactory uow.UoWFactory
	Logger     *slog.Logger
}

func (h *ListCustomerRentalsHandler) Handle(ctx context.Context, q ListCustomerRentalsQuery) (dto.RentalCollection, error) {
	customerID := strings.TrimSpace(q.CustomerID)
	if customerID == "" {
		return dto.RentalCollection{}, errors.New("booking: customer id is required")
	}
	unit, execCtx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.RentalCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	rentals, err := unit.Rentals().ListByCustomer(execCtx, customerID)
	if err != nil {
		return dto.RentalCollection{}, err
	}

	statusFilter := strings.ToUpper(strings.TrimSpace(q.Status))
	if statusFilter == "" {
		statusFilter = allStatusesFilterValue
	}
	allStatuses := statusFilter == allStatusesFilterValue

	items := make([]dto.RentalView, 0, len(rentals))
	for _, booked := range rentals {
		if !allStatuses && string(booked.FulfillmentStatus) != statusFilter {
			continue
		}
		items = append(items, dto.MapRental(booked))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	if h.Logger != nil {
		h.Logger.Debug("customer rentals listed", "customer_id", customerID, "count", len(items), "status", statusFilter)
	}
	return dto.RentalCollection{Items: items}, nil
}

var _ queries.Handler[GetRentalQuery, dto.RentalView] = (*GetRentalHandler)(nil)
var _ queries.Handler[ListCustomerRentalsQuery, dto.RentalCollection] = (*ListCustomerRentalsHandler)(nil)
