package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

type line struct {
	qty   int
	price string
}

// helper для создания заказа с позициями по заданным ценам.
func makeOrder(lines ...line) domain.Order {
	now := time.Now().UTC()
	order := domain.Order{
		ID:        1,
		OwnerID:   10,
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, line := range lines {
		order.Items = append(order.Items, domain.OrderItem{
			ID:        int64(i + 1),
			OrderID:   order.ID,
			ProductID: int64(100 + i),
			Quantity:  line.qty,
			Product: domain.Product{
				ID:    int64(100 + i),
				Name:  "product",
				Price: decimal.RequireFromString(line.price),
				Stock: 50,
			},
		})
	}
	return order
}

func TestOrderTotal(t *testing.T) {
	cases := []struct {
		name  string
		lines []line
		want  string
	}{
		{name: "no items", lines: nil, want: "0"},
		{name: "single item", lines: []line{{qty: 3, price: "9.99"}}, want: "29.97"},
		{name: "several items", lines: []line{{qty: 2, price: "10.00"}, {qty: 1, price: "20.00"}}, want: "40.00"},
		// 10.00 + 2*5.005 = 20.010 -> 20.01
		{name: "three places exact", lines: []line{{qty: 1, price: "10.00"}, {qty: 2, price: "5.005"}}, want: "20.01"},
		// половина округляется от нуля: 10.005 -> 10.01
		{name: "half rounds away from zero", lines: []line{{qty: 1, price: "10.00"}, {qty: 1, price: "0.005"}}, want: "10.01"},
		{name: "below half rounds down", lines: []line{{qty: 1, price: "10.004"}}, want: "10.00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder(tc.lines...)
			got := order.Total()
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("expected total %s, got %s", tc.want, got)
			}
		})
	}
}

func TestOrderTotal_MatchesIndependentSum(t *testing.T) {
	order := makeOrder(line{qty: 7, price: "3.33"}, line{qty: 4, price: "0.25"}, line{qty: 1, price: "1999.99"})

	var expected decimal.Decimal
	for _, item := range order.Items {
		expected = expected.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	expected = expected.Round(2)

	if !order.Total().Equal(expected) {
		t.Fatalf("expected %s, got %s", expected, order.Total())
	}
}

func TestOrderApplyStatus_AnyTransition(t *testing.T) {
	order := makeOrder(line{qty: 1, price: "1.00"})
	at := time.Now().UTC().Add(time.Minute)

	// Терминальный статус не мешает следующему переходу.
	sequence := []domain.OrderStatus{
		domain.OrderStatusDelivered,
		domain.OrderStatusPending,
		domain.OrderStatusCancelled,
		domain.OrderStatusShipped,
	}
	for _, status := range sequence {
		if err := order.ApplyStatus(status, at); err != nil {
			t.Fatalf("apply %s: %v", status, err)
		}
		if order.Status != status {
			t.Fatalf("expected status %s, got %s", status, order.Status)
		}
	}
	if !order.UpdatedAt.Equal(at) {
		t.Fatalf("expected updated_at %v, got %v", at, order.UpdatedAt)
	}
}

func TestOrderApplyStatus_RejectsUnknown(t *testing.T) {
	order := makeOrder(line{qty: 1, price: "1.00"})
	if err := order.ApplyStatus("LOST", time.Now()); !errors.Is(err, domain.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Fatalf("status must stay unchanged, got %s", order.Status)
	}
}

func TestParseOrderStatus(t *testing.T) {
	for _, status := range domain.OrderStatuses() {
		got, err := domain.ParseOrderStatus(" " + string(status) + " ")
		if err != nil {
			t.Fatalf("parse %s: %v", status, err)
		}
		if got != status {
			t.Fatalf("expected %s, got %s", status, got)
		}
	}

	for _, raw := range []string{"", "pending", "paid", "REFUNDED"} {
		if _, err := domain.ParseOrderStatus(raw); !errors.Is(err, domain.ErrInvalidStatus) {
			t.Fatalf("expected ErrInvalidStatus for %q, got %v", raw, err)
		}
	}
}

func TestValidateLineItems(t *testing.T) {
	cases := []struct {
		name  string
		items []domain.LineItem
		want  error
	}{
		{name: "empty", items: nil, want: domain.ErrItemsRequired},
		{name: "zero quantity", items: []domain.LineItem{{ProductID: 1, Quantity: 0}}, want: domain.ErrItemQtyInvalid},
		{name: "negative product", items: []domain.LineItem{{ProductID: -1, Quantity: 1}}, want: domain.ErrProductIDInvalid},
		{name: "ok", items: []domain.LineItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}}, want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := domain.ValidateLineItems(tc.items)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestScope(t *testing.T) {
	all := domain.AllOrders()
	if _, restricted := all.OwnerID(); restricted {
		t.Fatal("admin scope must not be restricted")
	}
	if !all.Allows(1) || !all.Allows(2) {
		t.Fatal("admin scope must allow any owner")
	}

	own := domain.OwnedBy(7)
	if id, restricted := own.OwnerID(); !restricted || id != 7 {
		t.Fatalf("expected owner 7, got %d (restricted=%v)", id, restricted)
	}
	if !own.Allows(7) || own.Allows(8) {
		t.Fatal("owner scope must allow only its owner")
	}

	if _, restricted := domain.ScopeFor(domain.Identity{UserID: 3, Role: domain.RoleAdmin}).OwnerID(); restricted {
		t.Fatal("admin identity must map to unrestricted scope")
	}
	if id, _ := domain.ScopeFor(domain.Identity{UserID: 3, Role: domain.RoleUser}).OwnerID(); id != 3 {
		t.Fatalf("user identity must map to own scope, got %d", id)
	}
}

func TestScope_OwnedByZeroStaysRestricted(t *testing.T) {
	zero := domain.OwnedBy(0)
	if id, restricted := zero.OwnerID(); !restricted || id != 0 {
		t.Fatalf("expected restricted scope for owner 0, got %d (restricted=%v)", id, restricted)
	}
	if zero.Allows(5) {
		t.Fatal("scope of owner 0 must not see other owners")
	}
	if zero == domain.AllOrders() {
		t.Fatal("scope of owner 0 must differ from admin scope")
	}
}
