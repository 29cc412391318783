package orders

import (
	"context"
	"errors"

	"github.com/angelmondragon/angkor-storefront/pkg/db"
	"github.com/angelmondragon/angkor-storefront/pkg/db/models"
	"github.com/angelmondragon/angkor-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/angkor-storefront/pkg/errors"
	"github.com/angelmondragon/angkor-storefront/pkg/pagination"
)

// Service is the customer's read-only view of their orders.
type Service interface {
	GetOrder(ctx context.Context, userID, orderID int64) (*OrderDTO, error)
	ListOrders(ctx context.Context, userID int64, q ListQuery) (*OrderList, error)
}

// ListQuery pages a customer's orders. Empty filters match everything.
type ListQuery struct {
	Page          pagination.Params
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, errors.New("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetOrder(ctx context.Context, userID, orderID int64) (*OrderDTO, error) {
	order, err := s.repo.FindForUser(ctx, userID, orderID)
	switch {
	case db.IsNotFound(err):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	dto := NewOrderDTO(order)
	return &dto, nil
}

func (s *service) ListOrders(ctx context.Context, userID int64, q ListQuery) (*OrderList, error) {
	if q.Status != "" && !q.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status")
	}
	if q.PaymentStatus != "" && !q.PaymentStatus.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment status")
	}
	cursor, err := q.Page.Decode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListForUser(ctx, userID, q, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	list := &OrderList{}
	rows, list.NextCursor = pagination.Trim(rows, q.Page, func(o models.Order) int64 { return o.ID })
	list.Orders = make([]OrderDTO, 0, len(rows))
	for i := range rows {
		list.Orders = append(list.Orders, NewOrderDTO(&rows[i]))
	}
	return list, nil
}
