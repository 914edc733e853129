package renderer

import "github.com/thereceipt/receipt-raster/pkg/receiptformat"

// Item table columns, right to left
const (
	ColumnName = iota
	ColumnQuantity
	ColumnPrice
	ColumnTotal
)

// cellPadding keeps right-anchored cell text clear of the column to its left
const cellPadding = 4.0

// ColumnGeometry holds the right and left edge of each item table column.
// It is computed once per render and shared by the header and every row.
type ColumnGeometry struct {
	Right [4]float64
	Left  [4]float64
}

// NewColumnGeometry lays the columns out from the inner right edge leftwards
func NewColumnGeometry(cfg *receiptformat.LayoutConfig) *ColumnGeometry {
	g := &ColumnGeometry{}
	inner := cfg.InnerWidth()
	cursor := float64(cfg.PaperWidth) - cfg.MarginX

	for i, f := range cfg.Columns.Slice() {
		g.Right[i] = cursor
		cursor -= f * inner
		g.Left[i] = cursor
	}

	return g
}

// Limit is the leftmost x text in column i may reach
func (g *ColumnGeometry) Limit(i int) float64 {
	limit := g.Left[i]
	if i != ColumnTotal {
		limit += cellPadding
	}
	return limit
}
