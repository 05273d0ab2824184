package order

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"rawlink/internal/app/model"
)

func TestCanTransition(t *testing.T) {
	tt := []struct {
		from model.OrderStatus
		to   model.OrderStatus
		ok   bool
	}{
		{model.OrderStatusCreated, model.OrderStatusAccepted, true},
		{model.OrderStatusCreated, model.OrderStatusCancelled, true},
		{model.OrderStatusCreated, model.OrderStatusDisputed, true},
		{model.OrderStatusCreated, model.OrderStatusShipped, false},
		{model.OrderStatusCreated, model.OrderStatusCompleted, false},
		{model.OrderStatusAccepted, model.OrderStatusShipped, true},
		{model.OrderStatusAccepted, model.OrderStatusCancelled, true},
		{model.OrderStatusAccepted, model.OrderStatusDisputed, true},
		{model.OrderStatusAccepted, model.OrderStatusCompleted, false},
		{model.OrderStatusShipped, model.OrderStatusCompleted, true},
		{model.OrderStatusShipped, model.OrderStatusDisputed, true},
		{model.OrderStatusShipped, model.OrderStatusCancelled, false},
		{model.OrderStatusShipped, model.OrderStatusAccepted, false},
		// Terminal statuses admit nothing.
		{model.OrderStatusCompleted, model.OrderStatusDisputed, false},
		{model.OrderStatusCancelled, model.OrderStatusCreated, false},
		{model.OrderStatusDisputed, model.OrderStatusCompleted, false},
	}

	for _, tc := range tt {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestActionTarget(t *testing.T) {
	for action, want := range actionTargets {
		got, ok := action.Target()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := Action("teleport").Target()
	assert.False(t, ok)
}

func TestAllowed(t *testing.T) {
	buyer := uuid.New()
	vendor := uuid.New()
	stranger := uuid.New()

	order := func(status model.OrderStatus) *model.Order {
		return &model.Order{BuyerID: buyer, VendorID: vendor, Status: status}
	}

	tt := []struct {
		name   string
		action Action
		order  *model.Order
		actor  uuid.UUID
		ok     bool
	}{
		{"VendorAccepts", ActionAccept, order(model.OrderStatusCreated), vendor, true},
		{"BuyerCannotAccept", ActionAccept, order(model.OrderStatusCreated), buyer, false},
		{"VendorShips", ActionShip, order(model.OrderStatusAccepted), vendor, true},
		{"BuyerCannotShip", ActionShip, order(model.OrderStatusAccepted), buyer, false},
		{"BuyerCompletes", ActionComplete, order(model.OrderStatusShipped), buyer, true},
		{"VendorCannotComplete", ActionComplete, order(model.OrderStatusShipped), vendor, false},
		{"BuyerCancelsCreated", ActionCancel, order(model.OrderStatusCreated), buyer, true},
		{"VendorCannotCancelCreated", ActionCancel, order(model.OrderStatusCreated), vendor, false},
		{"BuyerCancelsAccepted", ActionCancel, order(model.OrderStatusAccepted), buyer, true},
		{"VendorCancelsAccepted", ActionCancel, order(model.OrderStatusAccepted), vendor, true},
		{"BuyerDisputes", ActionDispute, order(model.OrderStatusShipped), buyer, true},
		{"VendorDisputes", ActionDispute, order(model.OrderStatusShipped), vendor, true},
		{"StrangerDeniedEverything", ActionDispute, order(model.OrderStatusShipped), stranger, false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, allowed(tc.action, tc.order, tc.actor))
		})
	}
}
