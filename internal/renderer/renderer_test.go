package renderer

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fogleman/gg"
	"github.com/shopspring/decimal"

	"github.com/thereceipt/receipt-raster/internal/layout"
	"github.com/thereceipt/receipt-raster/internal/raster"
	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testFonts(t *testing.T) *Fonts {
	t.Helper()
	fonts, err := DefaultFonts()
	if err != nil {
		t.Fatalf("Failed to load default fonts: %v", err)
	}
	return fonts
}

func render(t *testing.T, cfg receiptformat.LayoutConfig, req *receiptformat.Request) *Result {
	t.Helper()
	r, err := New(testFonts(t), cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}
	result, err := r.Render(req)
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}
	return result
}

func latinLayout() receiptformat.LayoutConfig {
	cfg := receiptformat.DefaultLayout()
	cfg.Labels = receiptformat.Labels{
		Name: "Item", Quantity: "Qty", Price: "Price", Total: "Total",
		Discount: "Discount", Subtotal: "Subtotal", Tax: "Tax", Grand: "TOTAL", Invoice: "Invoice",
	}
	return cfg
}

func fieldsIn(result *Result, section string) []DrawnField {
	var out []DrawnField
	for _, f := range result.Fields {
		if f.Section == section {
			out = append(out, f)
		}
	}
	return out
}

func TestRender_TotalIgnoresCallerLineTotals(t *testing.T) {
	bogus := dec("100")
	req := &receiptformat.Request{
		Title: "Test Store",
		Items: []receiptformat.LineItem{
			{Name: "Apple", Quantity: dec("2"), UnitPrice: dec("3.5"), Total: &bogus},
			{Name: "Pear", Quantity: dec("1"), UnitPrice: dec("4"), Total: &bogus},
		},
		Discount: dec("1.5"),
	}

	result := render(t, latinLayout(), req)

	if got := result.Totals.Total.StringFixed(2); got != "9.50" {
		t.Errorf("Expected total 9.50, got %s", got)
	}

	total := fieldsIn(result, "total")
	if len(total) != 2 || total[1].Text != "9.50" {
		t.Fatalf("Expected total row with value 9.50, got %+v", total)
	}

	var lineTotals []string
	for _, f := range fieldsIn(result, "items") {
		if f.Column == ColumnTotal {
			lineTotals = append(lineTotals, f.Text)
		}
	}
	if len(lineTotals) != 2 || lineTotals[0] != "7.00" || lineTotals[1] != "4.00" {
		t.Errorf("Expected line totals [7.00 4.00], got %v", lineTotals)
	}
}

func TestRender_ItemCellsUseTwoDecimals(t *testing.T) {
	req := &receiptformat.Request{
		Title: "Test Store",
		Items: []receiptformat.LineItem{
			{Name: "Apple", Quantity: dec("2"), UnitPrice: dec("2.50")},
			{Name: "Pear", Quantity: dec("3"), UnitPrice: dec("1.50")},
		},
		Discount: dec("0"),
	}

	result := render(t, latinLayout(), req)
	if got := result.Totals.Total.StringFixed(2); got != "9.50" {
		t.Errorf("Expected total 9.50, got %s", got)
	}
	if len(fieldsIn(result, "discount")) != 0 {
		t.Error("Expected no discount row for a zero discount")
	}

	cells := map[int][]string{}
	for _, f := range fieldsIn(result, "items") {
		cells[f.Column] = append(cells[f.Column], f.Text)
	}
	want := map[int][]string{
		ColumnQuantity: {"2.00", "3.00"},
		ColumnPrice:    {"2.50", "1.50"},
		ColumnTotal:    {"5.00", "4.50"},
	}
	for column, values := range want {
		if strings.Join(cells[column], ",") != strings.Join(values, ",") {
			t.Errorf("column %d: expected %v, got %v", column, values, cells[column])
		}
	}

	fractional := render(t, latinLayout(), &receiptformat.Request{
		Title: "Test Store",
		Items: []receiptformat.LineItem{{Name: "Cheese", Quantity: dec("1.5"), UnitPrice: dec("1")}},
	})
	for _, f := range fieldsIn(fractional, "items") {
		if f.Column == ColumnQuantity && f.Text != "1.50" {
			t.Errorf("Expected quantity 1.50, got %q", f.Text)
		}
	}
}

func TestRender_DiscountRowSuppression(t *testing.T) {
	tests := []struct {
		discount string
		rows     int
	}{
		{"0", 0},
		{"0.00005", 0},
		{"0.01", 2},
	}

	for _, tt := range tests {
		req := &receiptformat.Request{
			Title:    "Test Store",
			Items:    []receiptformat.LineItem{{Name: "Apple", Quantity: dec("1"), UnitPrice: dec("10")}},
			Discount: dec(tt.discount),
		}
		result := render(t, latinLayout(), req)
		if got := len(fieldsIn(result, "discount")); got != tt.rows {
			t.Errorf("discount %s: expected %d discount fields, got %d", tt.discount, tt.rows, got)
		}
	}
}

func TestRender_ColumnGeometryShared(t *testing.T) {
	req := &receiptformat.Request{
		Title: "Test Store",
		Items: []receiptformat.LineItem{
			{Name: "Apple", Quantity: dec("2"), UnitPrice: dec("3.50")},
			{Name: "Banana", Quantity: dec("12"), UnitPrice: dec("0.25")},
			{Name: "Cherry", Quantity: dec("1"), UnitPrice: dec("19.99")},
		},
	}

	result := render(t, latinLayout(), req)
	if result.Geometry == nil {
		t.Fatal("Expected column geometry in result")
	}

	checked := 0
	for _, f := range result.Fields {
		if f.Section != "column_headers" && f.Section != "items" {
			continue
		}
		if f.Geometry != result.Geometry {
			t.Errorf("%s field %q uses a different column geometry", f.Section, f.Text)
		}
		if math.Abs(f.Line.Right-result.Geometry.Right[f.Column]) > 1e-9 {
			t.Errorf("%s field %q right edge %.2f, want %.2f", f.Section, f.Text, f.Line.Right, result.Geometry.Right[f.Column])
		}
		checked++
	}
	if checked != 16 {
		t.Errorf("Expected 16 header and item fields, got %d", checked)
	}
}

func TestNewColumnGeometry(t *testing.T) {
	cfg := receiptformat.DefaultLayout()
	g := NewColumnGeometry(&cfg)

	if g.Right[ColumnName] != 560 {
		t.Errorf("Expected name column to start at the inner right edge 560, got %.2f", g.Right[ColumnName])
	}
	for i := 1; i < 4; i++ {
		if g.Right[i] != g.Left[i-1] {
			t.Errorf("column %d right %.2f does not meet column %d left %.2f", i, g.Right[i], i-1, g.Left[i-1])
		}
	}
	if math.Abs(g.Left[ColumnTotal]-16) > 1e-9 {
		t.Errorf("Expected fractions summing to 1.0 to end at the left margin, got %.4f", g.Left[ColumnTotal])
	}
}

func TestRender_EndToEndRaster(t *testing.T) {
	req := &receiptformat.Request{
		Title: "Test Store",
		Items: []receiptformat.LineItem{{Name: "Apple", Quantity: dec("2"), UnitPrice: dec("2.50")}},
	}

	cfg := latinLayout()
	result, bitmap, err := RenderBitmap(testFonts(t), cfg, req, nil)
	if err != nil {
		t.Fatalf("Failed to render: %v", err)
	}

	if bitmap.Width != 576 {
		t.Errorf("Expected 576 px wide bitmap, got %d", bitmap.Width)
	}

	frame := raster.PackRaster(bitmap)
	if len(frame.Data) != frame.WidthBytes*frame.Height || frame.WidthBytes != 72 {
		t.Errorf("Expected %d x %d bytes, got %d", frame.WidthBytes, frame.Height, len(frame.Data))
	}

	var apple *DrawnField
	for i, f := range result.Fields {
		if f.Section == "items" && f.Text == "Apple" {
			apple = &result.Fields[i]
		}
	}
	if apple == nil {
		t.Fatal("Expected an item field for Apple")
	}

	baseline := int(apple.Line.Placements[0].Y)
	row := image.Rect(int(apple.Line.Left), baseline-int(cfg.FontSizes.Item), int(apple.Line.Right)+1, baseline+4)
	if bitmap.Ink(row) == 0 {
		t.Errorf("Expected black pixels in the Apple row %v", row)
	}

	bottom := image.Rect(0, bitmap.Height-int(cfg.BottomMargin)+1, bitmap.Width, bitmap.Height)
	if ink := bitmap.Ink(bottom); ink != 0 {
		t.Errorf("Expected the bottom margin to be blank, found %d black pixels", ink)
	}
}

func TestRender_MissingGlyphsDegrade(t *testing.T) {
	req := receiptformat.Sample()

	result := render(t, receiptformat.DefaultLayout(), req)
	if result.Degradations.MissingGlyphs == 0 {
		t.Error("Expected missing glyphs for Arabic text with the Go Regular font")
	}
	if result.Totals.Total.StringFixed(2) != "114.50" {
		t.Errorf("Expected sample total 114.50, got %s", result.Totals.Total.StringFixed(2))
	}
}

func TestRender_LongNameTruncated(t *testing.T) {
	req := &receiptformat.Request{
		Title: "Test Store",
		Items: []receiptformat.LineItem{
			{Name: "Extra large family size pizza with olives and peppers", Quantity: dec("1"), UnitPrice: dec("9")},
		},
	}

	result := render(t, latinLayout(), req)
	if result.Degradations.Truncated == 0 {
		t.Error("Expected the long item name to be truncated")
	}
	for _, f := range fieldsIn(result, "items") {
		if f.Column == ColumnName && f.Line.Left < result.Geometry.Left[ColumnName] {
			t.Errorf("Item name crosses into the quantity column: left %.2f", f.Line.Left)
		}
	}
}

func TestRender_ManyItems(t *testing.T) {
	req := &receiptformat.Request{Title: "Test Store"}
	for i := 0; i < 150; i++ {
		req.Items = append(req.Items, receiptformat.LineItem{Name: "Apple", Quantity: dec("1"), UnitPrice: dec("1")})
	}

	result := render(t, latinLayout(), req)
	if got := result.Totals.Total.StringFixed(2); got != "150.00" {
		t.Errorf("Expected total 150.00, got %s", got)
	}
	if h := result.Image.Bounds().Dy(); h < 150*int(latinLayout().FontSizes.Item) {
		t.Errorf("Expected image tall enough for 150 rows, got %d", h)
	}
}

func TestRender_OptionalSections(t *testing.T) {
	logo := image.NewGray(image.Rect(0, 0, 40, 20))
	for i := range logo.Pix {
		logo.Pix[i] = 0
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, logo); err != nil {
		t.Fatalf("Failed to encode logo: %v", err)
	}

	cfg := latinLayout()
	cfg.InvoiceBarcode = true
	cfg.WrapTitle = true

	req := &receiptformat.Request{
		Title:         "A very long store name that certainly does not fit on one line of paper",
		InvoiceNumber: "INV-42",
		Items:         []receiptformat.LineItem{{Name: "Apple", Quantity: dec("2"), UnitPrice: dec("50")}},
		TaxRate:       dec("10"),
		Logo:          &receiptformat.Logo{Base64: base64.StdEncoding.EncodeToString(buf.Bytes())},
		QRPayload:     "https://example.com/r/42",
		Footer:        receiptformat.Footer{Address: "1 Main St", Phones: []string{"0100-123-4567"}},
	}

	result := render(t, cfg, req)
	if len(result.Degradations.Skipped) != 0 {
		t.Errorf("Expected no skipped sections, got %v", result.Degradations.Skipped)
	}
	if n := len(fieldsIn(result, "title")); n < 2 {
		t.Errorf("Expected the title to wrap onto several lines, got %d", n)
	}
	if len(fieldsIn(result, "tax")) != 2 || len(fieldsIn(result, "subtotal")) != 2 {
		t.Error("Expected subtotal and tax rows")
	}
	if result.Totals.Total.StringFixed(2) != "110.00" {
		t.Errorf("Expected total 110.00, got %s", result.Totals.Total.StringFixed(2))
	}
	phones := fieldsIn(result, "footer_phone")
	if len(phones) != 1 || phones[0].Anchor != layout.AnchorLeft {
		t.Errorf("Expected one left-anchored phone field, got %+v", phones)
	}
}

func TestRender_BadLogoIsSkipped(t *testing.T) {
	req := &receiptformat.Request{
		Title: "Test Store",
		Logo:  &receiptformat.Logo{Path: "/nonexistent/logo.png"},
	}

	result := render(t, latinLayout(), req)
	if len(result.Degradations.Skipped) != 1 || result.Degradations.Skipped[0] != "logo" {
		t.Errorf("Expected logo to be skipped, got %v", result.Degradations.Skipped)
	}
}

func TestRender_LogoPathConfinedToLogoDir(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("Failed to encode logo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "logo.png"), buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write logo: %v", err)
	}
	outside := filepath.Join(t.TempDir(), "secret.png")
	if err := os.WriteFile(outside, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write image: %v", err)
	}

	tests := []struct {
		name    string
		logoDir string
		path    string
		skipped bool
	}{
		{"inside logo dir", dir, "logo.png", false},
		{"parent traversal", dir, "../" + filepath.Base(filepath.Dir(outside)) + "/secret.png", true},
		{"absolute path", dir, outside, true},
		{"paths disabled", "", "logo.png", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := latinLayout()
			cfg.LogoDir = tt.logoDir
			req := &receiptformat.Request{
				Title: "Test Store",
				Logo:  &receiptformat.Logo{Path: tt.path},
			}

			result := render(t, cfg, req)
			skipped := len(result.Degradations.Skipped) == 1 && result.Degradations.Skipped[0] == "logo"
			if skipped != tt.skipped {
				t.Errorf("Expected skipped=%v, got %v", tt.skipped, result.Degradations.Skipped)
			}
		})
	}
}

func TestNew_RejectsInvalidLayout(t *testing.T) {
	cfg := receiptformat.DefaultLayout()
	cfg.Columns.Name = 0.9

	_, err := New(testFonts(t), cfg, nil)
	if !errors.Is(err, receiptformat.ErrInvalidLayout) {
		t.Errorf("Expected ErrInvalidLayout, got %v", err)
	}
}

func TestRenderer_SingleUse(t *testing.T) {
	r, err := New(testFonts(t), latinLayout(), nil)
	if err != nil {
		t.Fatalf("Failed to create renderer: %v", err)
	}
	req := &receiptformat.Request{Title: "Test Store"}
	if _, err := r.Render(req); err != nil {
		t.Fatalf("First render failed: %v", err)
	}
	if _, err := r.Render(req); err == nil {
		t.Error("Expected second render on the same renderer to fail")
	}
}

func TestRasterizer_BoldDrawsMoreInk(t *testing.T) {
	fonts := testFonts(t)
	ink := func(bold bool) int {
		rz := NewRasterizer(fonts)
		img := image.NewRGBA(image.Rect(0, 0, 200, 60))
		for i := range img.Pix {
			img.Pix[i] = 0xFF
		}
		ctx := gg.NewContextForRGBA(img)
		ctx.SetColor(color.Black)
		engine := layout.Engine{Measurer: rz.Measurer(24)}
		line := engine.Line("Apple", layout.Field{Anchor: layout.AnchorLeft, Edge: 10, Limit: 190, Y: 40})
		rz.Draw(ctx, line, 24, bold)
		return raster.Binarize(ctx.Image(), raster.DefaultThreshold).Ink(image.Rect(0, 0, 200, 60))
	}

	regular, bold := ink(false), ink(true)
	if regular == 0 || bold <= regular {
		t.Errorf("Expected bold ink > regular ink > 0, got bold=%d regular=%d", bold, regular)
	}
}

func TestRasterizer_MissingGlyphMeasuredAsFallback(t *testing.T) {
	rz := NewRasterizer(testFonts(t))
	m := rz.Measurer(20)
	if got := m.Advance('ب'); got != 20*missingGlyphEm {
		t.Errorf("Expected fallback advance %.1f, got %.2f", 20*missingGlyphEm, got)
	}
	if got := m.Advance('A'); got <= 0 || got == 20*missingGlyphEm {
		t.Errorf("Expected a real advance for 'A', got %.2f", got)
	}
}
