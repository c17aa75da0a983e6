package domain

import "strings"

// OrderStatus is the status of an order as held by the order store.
// Statuses other than the constants below (e.g. "on-hold", "processing")
// are treated as non-terminal.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderCompleted, OrderFailed, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the core may move an order from s to target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	if s.IsTerminal() || s == target {
		return false
	}
	switch target {
	case OrderCompleted, OrderFailed, OrderCancelled:
		return true
	}
	return false
}

// Notification statuses reported by processors. Matching is case-insensitive.
const (
	NotificationCompleted = "completed"
	NotificationCanceled  = "canceled"
)

// NormalizeNotificationStatus lowercases and trims a reported status.
func NormalizeNotificationStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
