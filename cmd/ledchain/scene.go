// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

// loadFace returns the font face named by Config.Font.
func loadFace(name string) (font.Face, error) {
	switch name {
	case "basic":
		return basicfont.Face7x13, nil
	case "goregular":
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			return nil, err
		}
		return truetype.NewFace(f, &truetype.Options{Size: 8, Hinting: font.HintingFull}), nil
	}
	return nil, fmt.Errorf("unknown font %q", name)
}

// newScene renders the demo frames for a display of size b: two crossing
// lines, then text centered on the display. Lit pixels are white on black.
func newScene(b image.Rectangle, text string, face font.Face) []image.Image {
	w, h := b.Dx(), b.Dy()

	lines := gg.NewContext(w, h)
	lines.SetRGB(0, 0, 0)
	lines.Clear()
	lines.SetRGB(1, 1, 1)
	lines.SetLineWidth(1)
	lines.DrawLine(0.5, 0.5, float64(w)-0.5, float64(h)-0.5)
	lines.DrawLine(0.5, float64(h)-0.5, float64(w)-0.5, 0.5)
	lines.Stroke()

	msg := gg.NewContext(w, h)
	msg.SetRGB(0, 0, 0)
	msg.Clear()
	msg.SetRGB(1, 1, 1)
	msg.SetFontFace(face)
	msg.DrawStringAnchored(text, float64(w)/2, float64(h)/2, 0.5, 0.5)

	return []image.Image{lines.Image(), msg.Image()}
}
