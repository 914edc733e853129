package receiptformat

import (
	"errors"
	"fmt"
)

// ErrInvalidLayout marks configuration errors detected before any drawing
var ErrInvalidLayout = errors.New("invalid layout")

// ErrInvalidRequest marks receipt requests that cannot be rendered
var ErrInvalidRequest = errors.New("invalid receipt")

const fractionTolerance = 1e-9

func invalidLayout(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidLayout, fmt.Sprintf(format, args...))
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Validate rejects layouts that cannot be drawn
func (c *LayoutConfig) Validate() error {
	if c.PaperWidth <= 0 {
		return invalidLayout("paper_width must be positive, got %d", c.PaperWidth)
	}
	if c.PaperWidth%8 != 0 {
		return invalidLayout("paper_width must be a multiple of 8, got %d", c.PaperWidth)
	}
	if c.Threshold < 0 || c.Threshold > 255 {
		return invalidLayout("threshold must be within 0..255, got %d", c.Threshold)
	}
	if c.MarginX < 0 || c.MarginY < 0 || c.BottomMargin < 0 || c.RowGap < 0 {
		return invalidLayout("margins and row gap must not be negative")
	}
	if c.InnerWidth() <= 0 {
		return invalidLayout("margin_x %.1f leaves no drawable width on %d px paper", c.MarginX, c.PaperWidth)
	}

	sizes := map[string]float64{
		"title":       c.FontSizes.Title,
		"header":      c.FontSizes.Header,
		"item":        c.FontSizes.Item,
		"total_label": c.FontSizes.TotalLabel,
		"total_value": c.FontSizes.TotalValue,
		"footer":      c.FontSizes.Footer,
	}
	for name, size := range sizes {
		if size <= 0 {
			return invalidLayout("font size %s must be positive, got %.1f", name, size)
		}
	}

	sum := 0.0
	for i, f := range c.Columns.Slice() {
		if f < 0 {
			return invalidLayout("column[%d] fraction must not be negative, got %.3f", i, f)
		}
		sum += f
	}
	if sum > 1.0+fractionTolerance {
		return invalidLayout("column fractions sum to %.3f (must be at most 1.0)", sum)
	}

	if c.DiscountEpsilon < 0 {
		return invalidLayout("discount_epsilon must not be negative")
	}
	return nil
}

// Validate checks a receipt request
func (r *Request) Validate() error {
	if len(r.TitleLines()) > 2 {
		return invalidRequest("title has %d lines (at most 2)", len(r.TitleLines()))
	}
	for i, item := range r.Items {
		if item.Name == "" {
			return invalidRequest("item[%d]: 'name' is required", i)
		}
		if item.Quantity.IsNegative() {
			return invalidRequest("item[%d] '%s': quantity must not be negative", i, item.Name)
		}
		if item.UnitPrice.IsNegative() {
			return invalidRequest("item[%d] '%s': unit_price must not be negative", i, item.Name)
		}
	}
	if r.Discount.IsNegative() {
		return invalidRequest("discount must not be negative")
	}
	if r.TaxRate.IsNegative() {
		return invalidRequest("tax_rate must not be negative")
	}
	if r.Logo != nil && r.Logo.Path == "" && r.Logo.Base64 == "" {
		return invalidRequest("logo requires 'path' or 'base64'")
	}
	return nil
}
