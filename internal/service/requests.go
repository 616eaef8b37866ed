package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxQuantity bounds any single quantity the engine accepts, per line and
// per item summed across a sale.
const MaxQuantity = 1000000

// CreateSaleRequest represents a request to create a sale
type CreateSaleRequest struct {
	ClientID       int64             `json:"client_id" validate:"required,gt=0"`
	Lines          []SaleLineRequest `json:"items" validate:"required,min=1,dive"`
	Tax            decimal.Decimal   `json:"tax"`
	Discount       decimal.Decimal   `json:"discount"`
	PaymentMethod  string            `json:"payment_method" validate:"omitempty,oneof=cash card bank_transfer other"`
	Notes          string            `json:"notes" validate:"max=2000"`
	IdempotencyKey string            `json:"idempotency_key,omitempty" validate:"max=255"`
}

// SaleLineRequest represents one requested line of a sale
type SaleLineRequest struct {
	ItemID   int64 `json:"item_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0,lte=1000000"`
}

// SubmitPurchaseOrderRequest represents a new dealer order
type SubmitPurchaseOrderRequest struct {
	OrderNumber          string                     `json:"order_number" validate:"max=50"`
	DealerName           string                     `json:"dealer_name" validate:"required,max=255"`
	DealerContact        string                     `json:"dealer_contact" validate:"max=255"`
	DealerEmail          string                     `json:"dealer_email" validate:"omitempty,email"`
	Lines                []PurchaseOrderLineRequest `json:"items" validate:"required,min=1,dive"`
	Tax                  decimal.Decimal            `json:"tax"`
	ShippingCost         decimal.Decimal            `json:"shipping_cost"`
	Notes                string                     `json:"notes" validate:"max=2000"`
	ExpectedDeliveryDate *time.Time                 `json:"expected_delivery_date"`
}

// PurchaseOrderLineRequest represents one ordered item
type PurchaseOrderLineRequest struct {
	ItemName     string          `json:"item_name" validate:"required,max=255"`
	ItemBarcode  string          `json:"item_barcode" validate:"required,max=100"`
	Quantity     int             `json:"quantity" validate:"required,gt=0,lte=1000000"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

// CreateItemRequest represents a directly entered item
type CreateItemRequest struct {
	Barcode  string          `json:"barcode" validate:"required,max=100"`
	Name     string          `json:"name" validate:"required,max=255"`
	Quantity int             `json:"quantity" validate:"gte=0,lte=1000000"`
	Price    decimal.Decimal `json:"price"`
}

// CreateClientRequest represents a new client
type CreateClientRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"max=50"`
}

var structValidator = validator.New()

// validateRequest runs struct tag validation and reports every failing
// field in a single ValidationError.
func validateRequest(req interface{}) error {
	err := structValidator.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return models.Validation(err.Error())
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return models.Validation(strings.Join(msgs, "; "))
}

func requireNonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return models.Validation(fmt.Sprintf("%s must not be negative", field))
	}
	return nil
}

func (r *CreateSaleRequest) validate() error {
	if err := validateRequest(r); err != nil {
		return err
	}
	if err := requireNonNegative("tax", r.Tax); err != nil {
		return err
	}
	return requireNonNegative("discount", r.Discount)
}

func (r *SubmitPurchaseOrderRequest) validate() error {
	if err := validateRequest(r); err != nil {
		return err
	}
	if err := requireNonNegative("tax", r.Tax); err != nil {
		return err
	}
	if err := requireNonNegative("shipping_cost", r.ShippingCost); err != nil {
		return err
	}

	seen := make(map[string]bool, len(r.Lines))
	for i, line := range r.Lines {
		if err := requireNonNegative(fmt.Sprintf("items[%d].unit_cost", i), line.UnitCost); err != nil {
			return err
		}
		if err := requireNonNegative(fmt.Sprintf("items[%d].selling_price", i), line.SellingPrice); err != nil {
			return err
		}
		// two new lines with one barcode could never both be created on arrival
		if seen[line.ItemBarcode] {
			return models.Validation(fmt.Sprintf("barcode %s appears on more than one line", line.ItemBarcode))
		}
		seen[line.ItemBarcode] = true
	}
	return nil
}

func (r *CreateItemRequest) validate() error {
	if err := validateRequest(r); err != nil {
		return err
	}
	return requireNonNegative("price", r.Price)
}

func (r *CreateClientRequest) validate() error {
	return validateRequest(r)
}
