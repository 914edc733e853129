package printer

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/thereceipt/receipt-raster/internal/bidi"
	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

// TextOptions control the code page text rendering
type TextOptions struct {
	// Columns is the number of characters per printed line
	Columns         int
	DiscountEpsilon float64
	Labels          receiptformat.Labels
}

// DefaultTextOptions fit 80mm paper with font A
func DefaultTextOptions() TextOptions {
	return TextOptions{
		Columns:         48,
		DiscountEpsilon: receiptformat.DefaultLayout().DiscountEpsilon,
		Labels:          receiptformat.DefaultLayout().Labels,
	}
}

// TextReceipt renders a receipt as Windows-1256 text for printers that shape
// Arabic themselves. Lines are sent in visual order; characters the code page
// cannot represent print as '?'.
func TextReceipt(req *receiptformat.Request, opts TextOptions) []byte {
	if opts.Columns <= 0 {
		opts.Columns = DefaultTextOptions().Columns
	}
	totals := receiptformat.ComputeTotals(req, opts.DiscountEpsilon)
	width := opts.Columns
	rule := strings.Repeat("=", width)

	e := NewEncoder()
	// raw writes a line already in visual order
	raw := func(s string) {
		e.WriteRaw(encodeWindows1256(s))
		e.LineFeed()
	}
	line := func(s string) {
		raw(bidi.Visual(truncate(s, width)))
	}

	e.SetAlignment("center")
	e.SetBold(true)
	for _, title := range req.TitleLines() {
		line(title)
	}
	e.SetBold(false)
	if req.DateTime != "" {
		line(req.DateTime)
	}
	if req.InvoiceNumber != "" {
		line(req.InvoiceNumber)
	}

	e.SetAlignment("left")
	line(rule)

	// name column on the right, three numeric columns of equal width on the left
	numWidth := width / 5
	nameWidth := width - 3*numWidth
	row := func(name, qty, price, total string) {
		raw(cell(total, numWidth) + cell(price, numWidth) + cell(qty, numWidth) + cell(name, nameWidth))
	}

	row(opts.Labels.Name, opts.Labels.Quantity, opts.Labels.Price, opts.Labels.Total)
	line(strings.Repeat("-", width))
	for _, item := range req.Items {
		row(item.Name, item.Quantity.StringFixed(2), item.UnitPrice.StringFixed(2), item.LineTotal().StringFixed(2))
	}
	line(rule)

	summary := func(label, value string) {
		valueWidth := 2 * numWidth
		raw(cell(value, valueWidth) + cell(label, width-valueWidth))
	}
	if totals.ShowDiscount {
		summary(opts.Labels.Discount, "-"+receiptformat.FormatMoney(totals.Discount, req.Currency))
	}
	if totals.ShowTax {
		summary(opts.Labels.Subtotal, receiptformat.FormatMoney(totals.Subtotal.Sub(totals.Discount), req.Currency))
		summary(opts.Labels.Tax, receiptformat.FormatMoney(totals.Tax, req.Currency))
	}
	e.SetBold(true)
	summary(opts.Labels.Grand, receiptformat.FormatMoney(totals.Total, req.Currency))
	e.SetBold(false)

	f := req.Footer
	if f.Address != "" || f.DeliveryNote != "" || len(f.Phones) > 0 {
		line(rule)
		e.SetAlignment("center")
		for _, s := range []string{f.Address, f.DeliveryNote} {
			if s != "" {
				line(s)
			}
		}
		for _, phone := range f.Phones {
			line(phone)
		}
		e.SetAlignment("left")
	}

	return e.Bytes()
}

// cell truncates s to fit width with one separating space, converts it to
// visual order and right-aligns it
func cell(s string, width int) string {
	s = bidi.Visual(truncate(s, width-1))
	return strings.Repeat(" ", width-utf8.RuneCountInString(s)) + s
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	return string([]rune(s)[:width])
}

// encodeWindows1256 encodes s, replacing unmappable characters with '?'
func encodeWindows1256(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.Windows1256.EncodeRune(r)
		if !ok {
			b = '?'
		}
		out = append(out, b)
	}
	return out
}
