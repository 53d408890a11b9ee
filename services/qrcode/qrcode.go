// Package qrcode turns certificate verification URLs into inline QR images.
package qrcode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

var ErrEmptyURL = errors.New("verification url is empty")

// Encoder renders PNG QR codes as data URLs.
type Encoder struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = DefaultSize
	}
	return &Encoder{size: size, level: qrcode.Medium}
}

// Encode returns a data:image/png;base64 URL whose image encodes target.
func (e *Encoder) Encode(target string) (string, error) {
	if strings.TrimSpace(target) == "" {
		return "", ErrEmptyURL
	}

	png, err := qrcode.Encode(target, e.level, e.size)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// VerificationURL builds the public verification link for a certificate number.
func VerificationURL(base, number string) string {
	return strings.TrimRight(base, "/") + "/verify?cert=" + url.QueryEscape(number)
}
