package renderer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/disintegration/imaging"

	"github.com/thereceipt/receipt-raster/pkg/receiptformat"
)

const defaultLogoHeight = 160

// renderLogo draws the optional logo above the title. A logo that cannot be
// read is skipped and reported as a degradation.
func (r *Renderer) renderLogo(logo *receiptformat.Logo) error {
	if logo == nil {
		return nil
	}

	img, err := decodeLogo(logo, r.cfg.LogoDir)
	if err != nil {
		r.skip("logo", err)
		return nil
	}

	maxHeight := logo.MaxHeight
	if maxHeight <= 0 {
		maxHeight = defaultLogoHeight
	}

	img = imaging.Fit(img, int(r.cfg.InnerWidth()), maxHeight, imaging.Lanczos)
	gray := imaging.Grayscale(img)

	r.drawCentered(gray.Bounds().Dx(), gray.Bounds().Dy(), func(x, y int) {
		r.ctx.DrawImage(gray, x, y)
	})
	return nil
}

// decodeLogo reads inline base64 data, or a path resolved inside dir. Paths
// that leave dir, including through symlinks, are rejected.
func decodeLogo(logo *receiptformat.Logo, dir string) (image.Image, error) {
	if logo.Base64 != "" {
		data, err := base64.StdEncoding.DecodeString(logo.Base64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode logo: %w", err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode logo: %w", err)
		}
		return img, nil
	}

	if dir == "" {
		return nil, fmt.Errorf("logo paths are disabled, send the logo as base64")
	}
	file, err := os.OpenInRoot(dir, logo.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open logo: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode logo: %w", err)
	}
	return img, nil
}
