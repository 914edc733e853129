package renderer

import (
	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/skip2/go-qrcode"
)

const barcodeHeight = 80

// renderBarcode draws the invoice number as a centred Code 128 barcode
func (r *Renderer) renderBarcode(value string) error {
	code, err := code128.Encode(value)
	if err != nil {
		return err
	}

	// Scale by whole modules so bars stay crisp after thresholding
	inner := int(r.cfg.InnerWidth())
	module := inner / code.Bounds().Dx()
	if module < 1 {
		module = 1
	}
	width := code.Bounds().Dx() * module
	if width > inner {
		width = inner
	}

	scaled, err := barcode.Scale(code, width, barcodeHeight)
	if err != nil {
		return err
	}

	r.drawCentered(scaled.Bounds().Dx(), scaled.Bounds().Dy(), func(x, y int) {
		r.ctx.DrawImage(scaled, x, y)
	})
	return nil
}

// renderQRCode draws a centred QR code under the footer
func (r *Renderer) renderQRCode(payload string) error {
	if payload == "" {
		return nil
	}

	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		r.skip("qr", err)
		return nil
	}

	size := r.width / 2
	if size > 400 {
		size = 400
	}
	img := qr.Image(size)

	r.drawCentered(img.Bounds().Dx(), img.Bounds().Dy(), func(x, y int) {
		r.ctx.DrawImage(img, x, y)
	})
	return nil
}

// drawCentered reserves height for a w x h block, draws it centred and moves the cursor below it
func (r *Renderer) drawCentered(w, h int, draw func(x, y int)) {
	r.ensureHeight(h + 2*int(r.cfg.RowGap) + 1)

	x := (r.width - w) / 2
	y := int(r.y + r.cfg.RowGap)
	draw(x, y)

	r.mark(float64(y + h))
	r.y = float64(y+h) + r.cfg.RowGap
}
