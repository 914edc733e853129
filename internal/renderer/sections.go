package renderer

import (
	"strings"

	"github.com/thereceipt/receipt-raster/internal/bidi"
	"github.com/thereceipt/receipt-raster/internal/layout"
	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

const noColumn = -1

func (r *Renderer) renderTitle(req *receiptformat.Request) error {
	size := r.cfg.FontSizes.Title
	lines := req.TitleLines()
	if r.cfg.WrapTitle {
		lines = r.wrap(lines, size, r.cfg.InnerWidth())
	}

	for _, line := range lines {
		r.drawRow(size, textRow{section: "title", text: line, field: r.centerField(), column: noColumn, bold: true})
	}
	return nil
}

// wrap breaks lines greedily at spaces so each fits in width
func (r *Renderer) wrap(lines []string, size, width float64) []string {
	engine := layout.Engine{Measurer: r.raster.Measurer(size)}

	var out []string
	for _, line := range lines {
		words := strings.Fields(line)
		cur := ""
		for _, w := range words {
			next := w
			if cur != "" {
				next = cur + " " + w
			}
			if cur != "" && engine.Width(bidi.Shape(next)) > width {
				out = append(out, cur)
				cur = w
				continue
			}
			cur = next
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

func (r *Renderer) renderDateTime(req *receiptformat.Request) error {
	if req.DateTime == "" {
		return nil
	}
	r.drawRow(r.cfg.FontSizes.Header, textRow{
		section: "date_time",
		text:    req.DateTime,
		field:   r.rightField(r.innerRight(), r.cfg.MarginX),
		column:  noColumn,
	})
	return nil
}

func (r *Renderer) renderInvoice(req *receiptformat.Request) error {
	if req.InvoiceNumber == "" {
		return nil
	}

	fields := []textRow{{
		section: "invoice",
		text:    req.InvoiceNumber,
		field:   r.leftField(r.innerRight()),
		column:  noColumn,
	}}
	if label := r.cfg.Labels.Invoice; label != "" {
		// label sits on the right, the number on the left of the same row
		numberWidth := layout.Engine{Measurer: r.raster.Measurer(r.cfg.FontSizes.Header)}.Width(req.InvoiceNumber)
		fields[0].field.Limit = float64(r.width) / 2
		fields = append(fields, textRow{
			section: "invoice_label",
			text:    label,
			field:   r.rightField(r.innerRight(), r.cfg.MarginX+numberWidth+cellPadding),
			column:  noColumn,
		})
	}
	r.drawRow(r.cfg.FontSizes.Header, fields...)

	if r.cfg.InvoiceBarcode {
		if err := r.renderBarcode(req.InvoiceNumber); err != nil {
			r.skip("invoice_barcode", err)
		}
	}
	return nil
}

func (r *Renderer) renderColumnHeaders() error {
	r.renderDivider(dividerSolid)

	r.geometry = NewColumnGeometry(&r.cfg)
	labels := [4]string{
		r.cfg.Labels.Name,
		r.cfg.Labels.Quantity,
		r.cfg.Labels.Price,
		r.cfg.Labels.Total,
	}

	var fields []textRow
	for i, label := range labels {
		fields = append(fields, r.cell("column_headers", label, i, true))
	}
	r.drawRow(r.cfg.FontSizes.Header, fields...)

	r.renderDivider(dividerDashed)
	return nil
}

// cell is a right-anchored field inside item table column i
func (r *Renderer) cell(section, text string, i int, bold bool) textRow {
	return textRow{
		section: section,
		text:    text,
		field:   r.rightField(r.geometry.Right[i], r.geometry.Limit(i)),
		column:  i,
		bold:    bold,
	}
}

func (r *Renderer) renderItems(req *receiptformat.Request) error {
	for _, item := range req.Items {
		r.drawRow(r.cfg.FontSizes.Item,
			r.cell("items", item.Name, ColumnName, false),
			r.cell("items", item.Quantity.StringFixed(2), ColumnQuantity, false),
			r.cell("items", item.UnitPrice.StringFixed(2), ColumnPrice, false),
			r.cell("items", item.LineTotal().StringFixed(2), ColumnTotal, false),
		)
	}
	r.renderDivider(dividerSolid)
	return nil
}

func (r *Renderer) summaryRow(section, label, value string, labelSize, valueSize float64, bold bool) {
	rows := []textRow{
		{
			section: section,
			text:    label,
			field:   r.rightField(r.geometry.Right[ColumnName], r.geometry.Limit(ColumnName)),
			column:  ColumnName,
			bold:    bold,
		},
		{
			section: section,
			text:    value,
			// amounts may spill over the price column
			field:  r.rightField(r.geometry.Right[ColumnTotal], r.geometry.Left[ColumnPrice]),
			column: ColumnTotal,
			bold:   bold,
		},
	}
	r.drawSizedRow(rows, func(f textRow) float64 {
		if f.column == ColumnName {
			return labelSize
		}
		return valueSize
	})
}

func (r *Renderer) renderDiscount(req *receiptformat.Request, totals *receiptformat.Totals) error {
	if !totals.ShowDiscount {
		return nil
	}
	size := r.cfg.FontSizes.Item
	r.summaryRow("discount", r.cfg.Labels.Discount,
		"-"+receiptformat.FormatMoney(totals.Discount, req.Currency), size, size, false)
	return nil
}

func (r *Renderer) renderTax(req *receiptformat.Request, totals *receiptformat.Totals) error {
	if !totals.ShowTax {
		return nil
	}
	size := r.cfg.FontSizes.Item
	r.summaryRow("subtotal", r.cfg.Labels.Subtotal,
		receiptformat.FormatMoney(totals.Subtotal.Sub(totals.Discount), req.Currency), size, size, false)
	r.summaryRow("tax", r.cfg.Labels.Tax+" "+req.TaxRate.String()+"%",
		receiptformat.FormatMoney(totals.Tax, req.Currency), size, size, false)
	return nil
}

func (r *Renderer) renderTotal(req *receiptformat.Request, totals *receiptformat.Totals) error {
	r.summaryRow("total", r.cfg.Labels.Grand,
		receiptformat.FormatMoney(totals.Total, req.Currency),
		r.cfg.FontSizes.TotalLabel, r.cfg.FontSizes.TotalValue, true)
	return nil
}

func (r *Renderer) renderFooter(req *receiptformat.Request) error {
	f := req.Footer
	if f.Address == "" && f.DeliveryNote == "" && len(f.Phones) == 0 {
		return nil
	}

	r.renderDivider(dividerDouble)

	size := r.cfg.FontSizes.Footer
	for _, text := range []string{f.Address, f.DeliveryNote} {
		if text == "" {
			continue
		}
		r.drawRow(size, textRow{section: "footer", text: text, field: r.centerField(), column: noColumn})
	}

	for _, phone := range f.Phones {
		row := textRow{section: "footer_phone", text: phone, field: r.leftField(r.innerRight()), column: noColumn}
		if bidi.IsRTL(phone) {
			row.field = r.rightField(r.innerRight(), r.cfg.MarginX)
		}
		r.drawRow(size, row)
	}
	return nil
}
