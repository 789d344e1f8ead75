// File: internal/device/screen.go
package device

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngMagic)
}

// EnsureFormat re-encodes a screenshot into the configured format. PNG input
// with a PNG target passes through untouched so identical screens keep
// byte-identical captures.
func EnsureFormat(data []byte, format string) ([]byte, error) {
	if format == "png" && IsPNG(data) {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	default:
		return nil, fmt.Errorf("unsupported screenshot format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding screenshot as %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// IdenticalScreenshots reports whether two captures show pixel-identical
// screens. Undecodable input is never identical; the caller falls back to
// treating the screen as changed.
func IdenticalScreenshots(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	imgA, _, err := image.Decode(bytes.NewReader(a))
	if err != nil {
		return false
	}
	imgB, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return false
	}
	if imgA.Bounds() != imgB.Bounds() {
		return false
	}
	return bytes.Equal(flatten(imgA).Pix, flatten(imgB).Pix)
}

func flatten(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
