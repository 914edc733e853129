// Package receiptformat defines the receipt request accepted by the renderer
// and the layout configuration that controls how it is drawn.
package receiptformat

import "github.com/shopspring/decimal"

// Request is one receipt to print. It is consumed once per print.
type Request struct {
	// Title holds one or two lines separated by "\n".
	Title         string          `json:"title"`
	DateTime      string          `json:"date_time,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Items         []LineItem      `json:"items"`
	Discount      decimal.Decimal `json:"discount"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Currency      string          `json:"currency,omitempty"`
	Footer        Footer          `json:"footer"`
	Logo          *Logo           `json:"logo,omitempty"`
	QRPayload     string          `json:"qr_payload,omitempty"`
}

// LineItem is a single row of the item table
type LineItem struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	// Total is accepted for compatibility with older clients and ignored:
	// the printed line total is always Quantity * UnitPrice.
	Total *decimal.Decimal `json:"total,omitempty"`
}

// Footer lines printed after the total
type Footer struct {
	Address      string   `json:"address,omitempty"`
	DeliveryNote string   `json:"delivery_note,omitempty"`
	Phones       []string `json:"phones,omitempty"`
}

// Logo is an optional image printed above the title
type Logo struct {
	Path      string `json:"path,omitempty"`
	Base64    string `json:"base64,omitempty"`
	MaxHeight int    `json:"max_height,omitempty"`
}

// TitleLines splits the title into its printed lines
func (r *Request) TitleLines() []string {
	if r.Title == "" {
		return nil
	}
	var lines []string
	for _, line := range splitLines(r.Title) {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, trimCR(s[start:i]))
			start = i + 1
		}
	}
	return append(lines, trimCR(s[start:]))
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}
