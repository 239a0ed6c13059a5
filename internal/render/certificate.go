// Package render composites participant text onto certificate template
// images and bundles rendered certificates for download.
//
// Rendering is a pure function of (template bytes, participant, layout):
// no storage, no network. The delivery service treats any error here as an
// attachment-class failure.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
)

// Certificate renders one participant's certificate: the template PNG with
// the name and certification id drawn at their configured positions.
func Certificate(templatePNG []byte, p domain.Participant, nameCfg, idCfg domain.TextConfig) ([]byte, error) {
	src, err := png.Decode(bytes.NewReader(templatePNG))
	if err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}

	canvas := image.NewRGBA(src.Bounds())
	xdraw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, xdraw.Src)

	if err := drawText(canvas, p.Name, nameCfg); err != nil {
		return nil, fmt.Errorf("draw name: %w", err)
	}
	if err := drawText(canvas, p.CertificationID, idCfg); err != nil {
		return nil, fmt.Errorf("draw certification id: %w", err)
	}

	var out bytes.Buffer
	if err := png.Encode(&out, canvas); err != nil {
		return nil, fmt.Errorf("encode certificate: %w", err)
	}
	return out.Bytes(), nil
}

// drawText rasterizes the string at the base font size, scales it to the
// configured size, and composites it onto the canvas honoring alignment.
func drawText(canvas *image.RGBA, text string, cfg domain.TextConfig) error {
	if text == "" {
		return nil
	}
	if cfg.FontSize <= 0 {
		return fmt.Errorf("font size must be positive, got %d", cfg.FontSize)
	}

	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()
	if width == 0 {
		return nil
	}

	col, err := parseHexColor(cfg.Color)
	if err != nil {
		return err
	}

	strip := image.NewRGBA(image.Rect(0, 0, width, height))
	drawer := font.Drawer{
		Dst:  strip,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	drawer.DrawString(text)

	// Scale the 13px strip up to the requested size.
	scale := float64(cfg.FontSize) / float64(height)
	scaledW := int(float64(width) * scale)
	scaledH := cfg.FontSize
	if cfg.MaxWidth > 0 && scaledW > cfg.MaxWidth {
		scaledH = scaledH * cfg.MaxWidth / scaledW
		scaledW = cfg.MaxWidth
	}

	scaled := image.NewRGBA(image.Rect(0, 0, scaledW, scaledH))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), strip, strip.Bounds(), xdraw.Over, nil)

	left := cfg.X
	switch cfg.Align {
	case "center", "":
		left = cfg.X - scaledW/2
	case "right":
		left = cfg.X - scaledW
	}

	target := image.Rect(left, cfg.Y, left+scaledW, cfg.Y+scaledH)
	xdraw.Draw(canvas, target, scaled, scaled.Bounds().Min, xdraw.Over)
	return nil
}

// parseHexColor parses "#rgb" or "#rrggbb". Empty input means black.
func parseHexColor(s string) (color.RGBA, error) {
	if s == "" {
		return color.RGBA{A: 0xff}, nil
	}
	if s[0] != '#' {
		return color.RGBA{}, fmt.Errorf("color %q must start with #", s)
	}

	hexVal := func(c byte) (uint8, bool) {
		switch {
		case c >= '0' && c <= '9':
			return c - '0', true
		case c >= 'a' && c <= 'f':
			return c - 'a' + 10, true
		case c >= 'A' && c <= 'F':
			return c - 'A' + 10, true
		}
		return 0, false
	}

	c := color.RGBA{A: 0xff}
	switch len(s) {
	case 4:
		for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
			v, ok := hexVal(s[1+i])
			if !ok {
				return color.RGBA{}, fmt.Errorf("color %q has invalid hex digit", s)
			}
			*dst = v*16 + v
		}
	case 7:
		for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
			hi, ok1 := hexVal(s[1+i*2])
			lo, ok2 := hexVal(s[2+i*2])
			if !ok1 || !ok2 {
				return color.RGBA{}, fmt.Errorf("color %q has invalid hex digit", s)
			}
			*dst = hi*16 + lo
		}
	default:
		return color.RGBA{}, fmt.Errorf("color %q must be #rgb or #rrggbb", s)
	}
	return c, nil
}
