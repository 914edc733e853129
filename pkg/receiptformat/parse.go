package receiptformat

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// Parse parses and validates a receipt request from JSON
func Parse(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse receipt: %w", err)
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return &req, nil
}

// ParseFile parses a receipt request from disk
func ParseFile(path string) (*Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}

	return Parse(data)
}

// ParseLayout decodes a partial layout over base. Fields missing from data keep
// their base values.
func ParseLayout(data []byte, base LayoutConfig) (LayoutConfig, error) {
	cfg := base
	if len(data) == 0 {
		return cfg, cfg.Validate()
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}
	return cfg, cfg.Validate()
}

// ToJSON converts a Request to JSON bytes
func (r *Request) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Sample returns a demonstration receipt
func Sample() *Request {
	return &Request{
		Title:         "متجر عينة\nفرع القاهرة",
		DateTime:      "تاريخ 4 نوفمبر 2025 - 14:30",
		InvoiceNumber: "INV-2025-0042",
		Items: []LineItem{
			{Name: "قهوة تركي", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("35.00")},
			{Name: "كرواسون", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("28.50")},
			{Name: "مياه معدنية", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("7.00")},
		},
		Discount: decimal.RequireFromString("5.00"),
		Currency: "ج.م",
		Footer: Footer{
			Address:      "15 شارع التحرير، القاهرة",
			DeliveryNote: "شكرا لزيارتكم",
			Phones:       []string{"+20 2 2345 6789", "0100-123-4567"},
		},
	}
}
