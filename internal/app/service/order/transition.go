package order

import (
	"github.com/google/uuid"
	"rawlink/internal/app/model"
)

// Action is a requested order status change.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionShip     Action = "ship"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionDispute  Action = "dispute"
)

var actionTargets = map[Action]model.OrderStatus{
	ActionAccept:   model.OrderStatusAccepted,
	ActionShip:     model.OrderStatusShipped,
	ActionComplete: model.OrderStatusCompleted,
	ActionCancel:   model.OrderStatusCancelled,
	ActionDispute:  model.OrderStatusDisputed,
}

// Target resolves the action to its target status.
func (a Action) Target() (model.OrderStatus, bool) {
	s, ok := actionTargets[a]
	return s, ok
}

// transitions is the authority on legal status changes. Anything not
// listed here fails with apperr.ErrInvalidTransition.
var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusCreated: {
		model.OrderStatusAccepted,
		model.OrderStatusCancelled,
		model.OrderStatusDisputed,
	},
	model.OrderStatusAccepted: {
		model.OrderStatusShipped,
		model.OrderStatusCancelled,
		model.OrderStatusDisputed,
	},
	model.OrderStatusShipped: {
		model.OrderStatusCompleted,
		model.OrderStatusDisputed,
	},
}

// CanTransition reports whether the status change is in the table.
func CanTransition(from, to model.OrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// allowed reports whether the actor may drive the order through the
// action from its current status.
func allowed(action Action, o *model.Order, actorID uuid.UUID) bool {
	isBuyer := o.BuyerID == actorID
	isVendor := o.VendorID == actorID

	switch action {
	case ActionAccept, ActionShip:
		return isVendor
	case ActionComplete:
		return isBuyer
	case ActionCancel:
		if o.Status == model.OrderStatusCreated {
			return isBuyer
		}
		return isBuyer || isVendor
	case ActionDispute:
		return isBuyer || isVendor
	}

	return false
}
