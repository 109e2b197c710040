package ui

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNoQRCode is returned when an image holds no readable QR code.
var ErrNoQRCode = errors.New("ui: no QR code found")

// ScannerPresets are the codes the simulated scanner offers.
var ScannerPresets = []string{"EX-0785", "EX-0777"}

// QRDecoder extracts the text of a QR code from an image.
type QRDecoder interface {
	Decode(ctx context.Context, r io.Reader) (string, error)
}

// ZXingDecoder decodes PNG, JPEG and GIF images in process.
type ZXingDecoder struct{}

func (ZXingDecoder) Decode(ctx context.Context, r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize image: %w", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := qrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoQRCode, err)
	}
	return result.GetText(), nil
}
