// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import (
	"image"

	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// RowUpdate is one digit register that must be rewritten on one unit.
type RowUpdate struct {
	Unit int
	Row  int
	Data byte
}

// Framebuffer mirrors the LEDs of every unit in the cascade.
//
// Column x belongs to unit x/8. Within a unit, row bytes are MSB first: bit 7
// is the leftmost LED. The framebuffer only does bookkeeping, it never talks
// to the bus.
type Framebuffer struct {
	units int
	grid  [][Rows]byte
	// sent holds what the chips are believed to display, as of the last
	// DrainDirty.
	sent [][Rows]byte
	// forced rows are reported by the next DrainDirty even when unchanged.
	forced [][Rows]bool
}

// NewFramebuffer returns an all-off framebuffer for units cascaded chips.
func NewFramebuffer(units int) (*Framebuffer, error) {
	if units < 1 {
		return nil, outOfRange("cascade length %d", units)
	}
	return &Framebuffer{
		units:  units,
		grid:   make([][Rows]byte, units),
		sent:   make([][Rows]byte, units),
		forced: make([][Rows]bool, units),
	}, nil
}

// Units returns the cascade length.
func (f *Framebuffer) Units() int {
	return f.units
}

// Bounds returns the addressable grid. Min is always {0, 0}.
func (f *Framebuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.units*Columns, Rows)
}

func (f *Framebuffer) inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.units*Columns && y < Rows
}

// SetPixel turns the LED at (x, y) on or off.
func (f *Framebuffer) SetPixel(x, y int, on bool) error {
	if !f.inside(x, y) {
		return outOfBounds(x, y)
	}
	f.set(x, y, on)
	return nil
}

func (f *Framebuffer) set(x, y int, on bool) {
	mask := byte(0x80) >> uint(x%Columns)
	if on {
		f.grid[x/Columns][y] |= mask
	} else {
		f.grid[x/Columns][y] &^= mask
	}
}

// Pixel returns the state of the LED at (x, y). Out of grid coordinates read
// as off.
func (f *Framebuffer) Pixel(x, y int) bool {
	if !f.inside(x, y) {
		return false
	}
	return f.grid[x/Columns][y]&(0x80>>uint(x%Columns)) != 0
}

// SetRow replaces a whole row of one unit.
func (f *Framebuffer) SetRow(unit, row int, data byte) error {
	if unit < 0 || unit >= f.units || row < 0 || row >= Rows {
		return outOfBounds(unit*Columns, row)
	}
	f.grid[unit][row] = data
	return nil
}

// Row returns the current content of a row of one unit.
func (f *Framebuffer) Row(unit, row int) byte {
	if unit < 0 || unit >= f.units || row < 0 || row >= Rows {
		return 0
	}
	return f.grid[unit][row]
}

// Clear turns every LED off.
func (f *Framebuffer) Clear() {
	for ix := range f.grid {
		f.grid[ix] = [Rows]byte{}
	}
}

// DrawBitmap copies src so that src.Bounds().Min lands at origin. Pixels are
// converted with image1bit.BitModel; off pixels clear the LED.
//
// The whole destination rectangle must fit in the grid, otherwise nothing is
// drawn and an error wrapping ErrOutOfBounds is returned.
func (f *Framebuffer) DrawBitmap(origin image.Point, src image.Image) error {
	sr := src.Bounds()
	if sr.Empty() {
		return nil
	}
	dr := sr.Sub(sr.Min).Add(origin)
	if !dr.In(f.Bounds()) {
		if !f.inside(dr.Min.X, dr.Min.Y) {
			return outOfBounds(dr.Min.X, dr.Min.Y)
		}
		return outOfBounds(dr.Max.X-1, dr.Max.Y-1)
	}
	f.draw(dr, src, sr.Min)
	return nil
}

// draw copies src starting at sp into r, which must already be inside the
// grid.
func (f *Framebuffer) draw(r image.Rectangle, src image.Image, sp image.Point) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := src.At(sp.X+x-r.Min.X, sp.Y+y-r.Min.Y)
			f.set(x, y, bool(image1bit.BitModel.Convert(c).(image1bit.Bit)))
		}
	}
}

// Invalidate makes the next DrainDirty report every row of every unit. Use it
// when the chip RAM content is unknown, e.g. after power-up or a bus error.
func (f *Framebuffer) Invalidate() {
	for ix := range f.forced {
		for row := range f.forced[ix] {
			f.forced[ix][row] = true
		}
	}
}

// MarkDirty forces rows previously returned by DrainDirty to be reported
// again.
func (f *Framebuffer) MarkDirty(rows []RowUpdate) {
	for _, r := range rows {
		if r.Unit >= 0 && r.Unit < f.units && r.Row >= 0 && r.Row < Rows {
			f.forced[r.Unit][r.Row] = true
		}
	}
}

// Dirty reports whether DrainDirty would return anything.
func (f *Framebuffer) Dirty() bool {
	for unit := range f.grid {
		for row := range Rows {
			if f.forced[unit][row] || f.grid[unit][row] != f.sent[unit][row] {
				return true
			}
		}
	}
	return false
}

// DrainDirty returns the rows that differ from what was last drained, sorted
// by row then unit, and marks them clean.
//
// A pixel turned on then off again between two drains is not reported.
func (f *Framebuffer) DrainDirty() []RowUpdate {
	var out []RowUpdate
	for row := range Rows {
		for unit := range f.grid {
			if !f.forced[unit][row] && f.grid[unit][row] == f.sent[unit][row] {
				continue
			}
			out = append(out, RowUpdate{Unit: unit, Row: row, Data: f.grid[unit][row]})
			f.sent[unit][row] = f.grid[unit][row]
			f.forced[unit][row] = false
		}
	}
	return out
}

// Image returns a copy of the grid.
func (f *Framebuffer) Image() *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(f.Bounds())
	for y := range Rows {
		for x := range f.units * Columns {
			if f.Pixel(x, y) {
				img.SetBit(x, y, image1bit.On)
			}
		}
	}
	return img
}
