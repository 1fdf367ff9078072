package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
	"github.com/vladislavdragonenkov/shopdesk/internal/service/orders"
)

// OrderService — операции сервиса заказов, которые использует REST API.
type OrderService interface {
	Create(ctx context.Context, items []domain.LineItem, requesterID int64) (domain.Order, error)
	FindOne(ctx context.Context, orderID int64, scope domain.Scope) (orders.OrderView, error)
	FindAll(ctx context.Context, scope domain.Scope) (orders.OrderList, error)
	UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) (domain.Order, error)
}

// Handler обслуживает маршруты /orders.
type Handler struct {
	orders  OrderService
	idem    domain.IdempotencyRepository
	idemTTL time.Duration
	logger  *log.Entry
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object with an items array")
		return
	}

	result := h.withIdempotency(r.Context(), r.Header.Get(headerIdempotencyKey), identity.UserID, req, func(ctx context.Context) handlerResult {
		order, err := h.orders.Create(ctx, req.lineItems(), identity.UserID)
		if err != nil {
			code, body := errorResponse(err)
			return handlerResult{code, body}
		}
		body, err := json.Marshal(toOrderJSON(order))
		if err != nil {
			h.logger.WithError(err).WithField("order_id", order.ID).Error("failed to encode created order")
			return handlerResult{http.StatusInternalServerError, encodeError(http.StatusInternalServerError, msgInternal)}
		}
		return handlerResult{http.StatusCreated, body}
	})

	writeRaw(w, result.status, result.body)
}

func (h *Handler) listOwnOrders(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())
	h.writeList(w, r, domain.OwnedBy(identity.UserID))
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, domain.AllOrders())
}

func (h *Handler) writeList(w http.ResponseWriter, r *http.Request, scope domain.Scope) {
	list, err := h.orders.FindAll(r.Context(), scope)
	if err != nil {
		code, body := errorResponse(err)
		writeRaw(w, code, body)
		return
	}
	writeJSON(w, http.StatusOK, toOrderListJSON(list))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFrom(r.Context())

	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	view, err := h.orders.FindOne(r.Context(), orderID, domain.ScopeFor(identity))
	if err != nil {
		code, body := errorResponse(err)
		writeRaw(w, code, body)
		return
	}
	writeJSON(w, http.StatusOK, toOrderViewJSON(view))
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object with a status field")
		return
	}
	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), orderID, status)
	if err != nil {
		code, body := errorResponse(err)
		writeRaw(w, code, body)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(order))
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "orderId must be a positive integer")
		return 0, false
	}
	return id, true
}
