package models

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindInsufficientStock  Kind = "insufficient_stock"
	KindDuplicateKey       Kind = "duplicate_key"
	KindInvariantViolation Kind = "invariant_violation"
	KindUnauthorized       Kind = "unauthorized"
	KindValidation         Kind = "validation_error"
	KindConflict           Kind = "conflict"
)

// Sentinels usable with errors.Is.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInsufficientStock  = &Error{Kind: KindInsufficientStock}
	ErrDuplicateKey       = &Error{Kind: KindDuplicateKey}
	ErrInvariantViolation = &Error{Kind: KindInvariantViolation}
	ErrUnauthorized       = &Error{Kind: KindUnauthorized}
	ErrValidation         = &Error{Kind: KindValidation}
	ErrConflict           = &Error{Kind: KindConflict}
)

// Error carries enough context for a caller to render a specific message.
type Error struct {
	Kind      Kind   `json:"error"`
	Message   string `json:"details,omitempty"`
	Entity    string `json:"entity,omitempty"`
	ID        int64  `json:"id,omitempty"`
	ItemName  string `json:"item_name,omitempty"`
	Barcode   string `json:"barcode,omitempty"`
	Available *int   `json:"available,omitempty"`
	Requested *int   `json:"requested,omitempty"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

// Is matches any Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NotFound reports a missing or foreign entity.
func NotFound(entity string, id int64) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found: %d", entity, id),
		Entity:  entity,
		ID:      id,
	}
}

// InsufficientStock reports a sale line exceeding available stock.
func InsufficientStock(item *Item, requested int) *Error {
	available := item.Quantity
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("Not enough stock for %s. Available: %d, Requested: %d", item.Name, available, requested),
		Entity:    "item",
		ID:        item.ID,
		ItemName:  item.Name,
		Barcode:   item.Barcode,
		Available: &available,
		Requested: &requested,
	}
}

// DuplicateBarcode reports a barcode collision within an account.
func DuplicateBarcode(barcode string) *Error {
	return &Error{
		Kind:    KindDuplicateKey,
		Message: fmt.Sprintf("An item with this barcode already exists: %s", barcode),
		Entity:  "item",
		Barcode: barcode,
	}
}

// NegativeQuantity reports an adjustment that would drive stock below zero.
func NegativeQuantity(itemID int64, current, delta int) *Error {
	return &Error{
		Kind:      KindInvariantViolation,
		Message:   fmt.Sprintf("adjusting item %d by %d would make quantity negative (current %d)", itemID, delta, current),
		Entity:    "item",
		ID:        itemID,
		Available: &current,
	}
}

// Validation reports malformed input.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Conflict reports an illegal state transition or a held lock.
func Conflict(entity string, id int64, msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Entity: entity, ID: id}
}

// Unauthorized reports a missing caller identity.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}
