package qr

import (
	"github.com/skip2/go-qrcode"
)

// EncodePNG renders content as a 256px PNG QR image.
func EncodePNG(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, 256)
}
