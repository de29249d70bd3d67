package domain

import (
	"strings"
	"time"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped: {OrderStatusCompleted},
}

// CanTransition reports whether the order status DAG has an edge from -> to.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (o *Order) moveTo(action string, to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return &TransitionError{Action: action, Reason: "order is " + string(o.Status)}
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}

func (o *Order) SubmitPaymentProof(imageRef string, now time.Time) error {
	if imageRef == "" {
		return Invalid("image", "is required")
	}
	if o.Status != OrderStatusPending {
		return &TransitionError{Action: "submit payment proof", Reason: "order is " + string(o.Status)}
	}
	if o.PaymentStatus != PaymentStatusNone {
		return &TransitionError{Action: "submit payment proof", Reason: "payment is " + string(o.PaymentStatus)}
	}
	o.PaymentProofImage = imageRef
	o.PaymentStatus = PaymentStatusPendingReview
	o.UpdatedAt = now
	return nil
}

// ApprovePayment returns changed=false when the payment was already approved.
func (o *Order) ApprovePayment(now time.Time) (bool, error) {
	switch o.PaymentStatus {
	case PaymentStatusPaid:
		return false, nil
	case PaymentStatusPendingReview:
		o.PaymentStatus = PaymentStatusPaid
		o.UpdatedAt = now
		return true, nil
	}
	return false, &TransitionError{Action: "approve payment", Reason: "no payment proof under review"}
}

// RejectPayment clears the proof and returns the reference that must be
// removed from object storage.
func (o *Order) RejectPayment(now time.Time) (string, error) {
	if o.PaymentStatus != PaymentStatusPendingReview {
		return "", &TransitionError{Action: "reject payment", Reason: "no payment proof under review"}
	}
	proof := o.PaymentProofImage
	o.PaymentStatus = PaymentStatusNone
	o.PaymentProofImage = ""
	o.UpdatedAt = now
	return proof, nil
}

// Ship checks the status preconditions only; stock is checked by the caller
// inside the same transaction.
func (o *Order) Ship(now time.Time) error {
	if o.PaymentStatus != PaymentStatusPaid {
		return &TransitionError{Action: "ship order", Reason: "payment has not been approved"}
	}
	return o.moveTo("ship order", OrderStatusShipped, now)
}

func (o *Order) UpdateLocation(location string, now time.Time) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return Invalid("location", "is required")
	}
	if strings.EqualFold(location, LocationDelivered) {
		return Invalid("location", "use mark delivered to complete delivery")
	}
	if o.Status != OrderStatusShipped {
		return &TransitionError{Action: "update delivery location", Reason: "order is " + string(o.Status)}
	}
	if o.Delivered() {
		return &TransitionError{Action: "update delivery location", Reason: "order was already delivered"}
	}
	o.CurrentLocation = location
	o.UpdatedAt = now
	return nil
}

// MarkDelivered sets the delivered sentinel when location equals the formatted
// delivery address, ignoring case. It returns changed=false on repeat calls.
func (o *Order) MarkDelivered(location string, now time.Time) (bool, error) {
	if o.Status != OrderStatusShipped {
		return false, &TransitionError{Action: "mark delivered", Reason: "order is " + string(o.Status)}
	}
	if o.Delivered() {
		return false, nil
	}
	if !strings.EqualFold(location, o.Address.Format()) {
		return false, &TransitionError{Action: "mark delivered", Reason: "location does not match the delivery address"}
	}
	o.CurrentLocation = LocationDelivered
	o.UpdatedAt = now
	return true, nil
}

func (o *Order) ConfirmReceipt(now time.Time) error {
	if o.Status == OrderStatusShipped && !o.Delivered() {
		return &TransitionError{Action: "confirm receipt", Reason: "order has not been delivered"}
	}
	return o.moveTo("confirm receipt", OrderStatusCompleted, now)
}

func (o *Order) Cancel(now time.Time) error {
	if o.Status == OrderStatusPending && o.PaymentStatus != PaymentStatusNone {
		return &TransitionError{Action: "cancel order", Reason: "payment is " + string(o.PaymentStatus)}
	}
	return o.moveTo("cancel order", OrderStatusCancelled, now)
}
