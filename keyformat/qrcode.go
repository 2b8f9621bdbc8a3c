package keyformat

import (
	"context"
	"fmt"
	"strings"

	"github.com/jcarver989/lockbox/crypto/envelope"
	"github.com/jcarver989/lockbox/logger"
	"github.com/jcarver989/lockbox/pstack"
	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

// QRCodeResult is the outcome of rendering a QR code asynchronously.
type QRCodeResult struct {
	SVG string
	Err error
}

// render is swapped out in tests.
var render = renderSVG

// ToQRCode renders the JSON form of key as an SVG QR code, size pixels wide
// and high, with high error correction.
func ToQRCode(key envelope.EncryptionKey, size int) (string, error) {
	if size <= 0 {
		return "", errors.Errorf("keyformat: invalid QR code size %d", size)
	}
	content, err := ToJSONString(key)
	if err != nil {
		return "", err
	}
	return render(content, size)
}

// ToQRCodeAsync renders the QR code on its own goroutine. The returned
// channel delivers exactly one result and is then closed. A panic while
// rendering is delivered as an error carrying the stack of the panic. ctx
// is only used for logging.
func ToQRCodeAsync(ctx context.Context, key envelope.EncryptionKey, size int) <-chan QRCodeResult {
	ch := make(chan QRCodeResult, 1)

	go func() {
		defer close(ch)
		defer func() {
			if err := pstack.Recover(recover()); err != nil {
				logger.Error(ctx, "rendering QR code panicked", "error", fmt.Sprintf("%+v", err))
				ch <- QRCodeResult{Err: err}
			}
		}()

		svg, err := ToQRCode(key, size)
		ch <- QRCodeResult{SVG: svg, Err: err}
	}()

	return ch
}

// FromQRCode decodes the text scanned from a QR code made by ToQRCode.
func FromQRCode(text string) (envelope.EncryptionKey, error) {
	return FromJSONString(text)
}

func renderSVG(content string, size int) (string, error) {
	q, err := qrcode.New(content, qrcode.High)
	if err != nil {
		return "", errors.Wrap(err, "keyformat: encoding QR code")
	}

	bitmap := q.Bitmap()
	n := len(bitmap)

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`, size, size, n, n)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#ffffff"/>`, n, n)
	b.WriteString(`<path fill="#000000" d="`)
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&b, "M%d %dh1v1h-1z", x, y)
			}
		}
	}
	b.WriteString(`"/></svg>`)
	return b.String(), nil
}
