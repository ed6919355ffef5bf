package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dtrandev/marketloop-backend/api/responses"
	"github.com/dtrandev/marketloop-backend/api/validators"
	"github.com/dtrandev/marketloop-backend/internal/orders"
	"github.com/dtrandev/marketloop-backend/pkg/enums"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
	"github.com/dtrandev/marketloop-backend/pkg/types"
)

type placeOrderItemRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type placeOrderRequest struct {
	ShopID           uuid.UUID               `json:"shop_id" validate:"required"`
	PaymentMethod    string                  `json:"payment_method" validate:"required"`
	ShippingAddress  types.Address           `json:"shipping_address" validate:"required"`
	DeliveryOption   types.DeliveryOption    `json:"delivery_option" validate:"required"`
	Items            []placeOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingFeeCents int                     `json:"shipping_fee_cents" validate:"min=0"`
	DiscountCents    int                     `json:"discount_cents" validate:"min=0"`
}

// PlaceOrder creates an order for the authenticated buyer.
func PlaceOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method := enums.PaymentMethod(req.PaymentMethod)
		if !method.IsValid() {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method"))
			return
		}

		input := orders.PlaceInput{
			BuyerID:          buyerID,
			ShopID:           req.ShopID,
			PaymentMethod:    method,
			ShippingAddress:  req.ShippingAddress,
			DeliveryOption:   req.DeliveryOption,
			ShippingFeeCents: req.ShippingFeeCents,
			DiscountCents:    req.DiscountCents,
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, orders.PlaceItemInput{
				VariantID: item.VariantID,
				Qty:       item.Qty,
			})
		}

		order, err := svc.Place(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// ListMyOrders returns the buyer's own orders.
func ListMyOrders(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := parseOrderFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListBuyerOrders(r.Context(), buyerID, params, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MyOrderDetail returns one of the buyer's orders with items and shipment.
func MyOrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetOrderForBuyer(r.Context(), orderID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}
