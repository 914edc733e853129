package receiptformat

// LayoutConfig controls canvas geometry, typography and thresholds
type LayoutConfig struct {
	PaperWidth      int             `json:"paper_width" mapstructure:"paper_width"`
	Threshold       int             `json:"threshold" mapstructure:"threshold"`
	MarginX         float64         `json:"margin_x" mapstructure:"margin_x"`
	MarginY         float64         `json:"margin_y" mapstructure:"margin_y"`
	BottomMargin    float64         `json:"bottom_margin" mapstructure:"bottom_margin"`
	RowGap          float64         `json:"row_gap" mapstructure:"row_gap"`
	FontSizes       FontSizes       `json:"font_sizes" mapstructure:"font_sizes"`
	Columns         ColumnFractions `json:"columns" mapstructure:"columns"`
	DiscountEpsilon float64         `json:"discount_epsilon" mapstructure:"discount_epsilon"`
	Labels          Labels          `json:"labels" mapstructure:"labels"`
	Dividers        bool            `json:"dividers" mapstructure:"dividers"`
	WrapTitle       bool            `json:"wrap_title" mapstructure:"wrap_title"`
	InvoiceBarcode  bool            `json:"invoice_barcode" mapstructure:"invoice_barcode"`

	// LogoDir is the only directory logo paths are read from. It is set by
	// the host configuration and never decoded from request JSON. Empty
	// disables path logos.
	LogoDir string `json:"-" mapstructure:"logo_dir"`
}

// FontSizes in pixels per section
type FontSizes struct {
	Title      float64 `json:"title" mapstructure:"title"`
	Header     float64 `json:"header" mapstructure:"header"`
	Item       float64 `json:"item" mapstructure:"item"`
	TotalLabel float64 `json:"total_label" mapstructure:"total_label"`
	TotalValue float64 `json:"total_value" mapstructure:"total_value"`
	Footer     float64 `json:"footer" mapstructure:"footer"`
}

// ColumnFractions are the item table column widths as fractions of the
// inner width, listed right to left (name is the rightmost column).
type ColumnFractions struct {
	Name     float64 `json:"name" mapstructure:"name"`
	Quantity float64 `json:"quantity" mapstructure:"quantity"`
	Price    float64 `json:"price" mapstructure:"price"`
	Total    float64 `json:"total" mapstructure:"total"`
}

// Slice returns the fractions in right-to-left order
func (c ColumnFractions) Slice() [4]float64 {
	return [4]float64{c.Name, c.Quantity, c.Price, c.Total}
}

// Labels printed by the composer
type Labels struct {
	Name     string `json:"name" mapstructure:"name"`
	Quantity string `json:"quantity" mapstructure:"quantity"`
	Price    string `json:"price" mapstructure:"price"`
	Total    string `json:"total" mapstructure:"total"`
	Discount string `json:"discount" mapstructure:"discount"`
	Subtotal string `json:"subtotal" mapstructure:"subtotal"`
	Tax      string `json:"tax" mapstructure:"tax"`
	Grand    string `json:"grand" mapstructure:"grand"`
	Invoice  string `json:"invoice" mapstructure:"invoice"`
}

// DefaultLayout is the layout used for 80mm paper at 203 dpi
func DefaultLayout() LayoutConfig {
	return LayoutConfig{
		PaperWidth:   576,
		Threshold:    150,
		MarginX:      16,
		MarginY:      16,
		BottomMargin: 40,
		RowGap:       6,
		FontSizes: FontSizes{
			Title:      34,
			Header:     22,
			Item:       22,
			TotalLabel: 24,
			TotalValue: 28,
			Footer:     20,
		},
		Columns: ColumnFractions{
			Name:     0.46,
			Quantity: 0.14,
			Price:    0.18,
			Total:    0.22,
		},
		DiscountEpsilon: 0.0001,
		Labels: Labels{
			Name:     "الصنف",
			Quantity: "الكمية",
			Price:    "السعر",
			Total:    "المجموع",
			Discount: "الخصم",
			Subtotal: "المجموع الفرعي",
			Tax:      "الضريبة",
			Grand:    "الإجمالي",
			Invoice:  "رقم الفاتورة",
		},
		Dividers: true,
	}
}

// PaperWidthToPixels maps a paper name to its printable width in dots at 203 dpi
func PaperWidthToPixels(width string) (int, error) {
	switch width {
	case "58mm":
		return 384, nil
	case "80mm", "":
		return 576, nil
	case "112mm":
		return 832, nil
	default:
		return 0, invalidLayout("invalid paper width: %s (must be 58mm, 80mm, or 112mm)", width)
	}
}

// InnerWidth is the drawable width between the horizontal margins
func (c *LayoutConfig) InnerWidth() float64 {
	return float64(c.PaperWidth) - 2*c.MarginX
}
