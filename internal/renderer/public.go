package renderer

import (
	"go.uber.org/zap"

	"github.com/thereceipt/receipt-raster/internal/raster"
	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

// RenderBitmap renders a receipt and binarizes it with the layout threshold
func RenderBitmap(fonts *Fonts, cfg receiptformat.LayoutConfig, req *receiptformat.Request, logger *zap.Logger) (*Result, *raster.Bitmap, error) {
	r, err := New(fonts, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	result, err := r.Render(req)
	if err != nil {
		return nil, nil, err
	}

	return result, raster.Binarize(result.Image, uint8(cfg.Threshold)), nil
}
