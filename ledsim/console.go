// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ledsim

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"io"

	"github.com/GermanBionicSystems/ledchain/max7219"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
)

// ConsoleOpts represents the options available for the console renderer.
type ConsoleOpts struct {
	Palette *ansi256.Palette
	// On is the color of a lit LED at maximum intensity. Defaults to red.
	On color.NRGBA
	// Off is the color of an unlit LED. Defaults to a dark red.
	Off color.NRGBA

	_ struct{}
}

// Console draws the LEDs of a Chain to a terminal using ANSI color codes.
//
// Useful while you are waiting for your matrix modules to come by mail.
type Console struct {
	w       io.Writer
	palette ansi256.Palette
	on, off color.NRGBA

	buf bytes.Buffer
	// lines is the height of the previous frame, to redraw it in place.
	lines int
}

// NewConsole returns a Console writing to w. A nil w writes to stdout through
// go-colorable, so escape codes also work on Windows terminals.
func NewConsole(w io.Writer, opts *ConsoleOpts) *Console {
	if opts == nil {
		opts = &ConsoleOpts{}
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	if w == nil {
		w = colorable.NewColorableStdout()
	}
	c := &Console{w: w, palette: *p, on: opts.On, off: opts.Off}
	if c.on == (color.NRGBA{}) {
		c.on = color.NRGBA{R: 255, G: 16, B: 16, A: 255}
	}
	if c.off == (color.NRGBA{}) {
		c.off = color.NRGBA{R: 40, A: 255}
	}
	return c
}

func (c *Console) String() string {
	return "ledsim.Console"
}

// Halt resets the terminal colors.
func (c *Console) Halt() error {
	_, err := c.w.Write([]byte("\n\033[0m"))
	return err
}

// shade dims the on color according to the intensity register. The duty
// cycle of the chip goes from 1/32 to 31/32 in 15 steps.
func (c *Console) shade(intensity int) color.NRGBA {
	num := uint32(2*intensity + 1)
	return color.NRGBA{
		R: byte(uint32(c.on.R) * num / 31),
		G: byte(uint32(c.on.G) * num / 31),
		B: byte(uint32(c.on.B) * num / 31),
		A: 255,
	}
}

// Render draws one frame. Units are laid out left to right from position 0.
// After the first frame, the cursor is moved up so frames overwrite each
// other.
func (c *Console) Render(chips []ChipState) error {
	// This code is designed to minimize the amount of memory allocated per call.
	c.buf.Reset()
	if c.lines > 0 {
		_, _ = fmt.Fprintf(&c.buf, "\033[%dA", c.lines)
	}
	for row := range max7219.Rows {
		_, _ = c.buf.WriteString("\r\033[0m")
		for _, chip := range chips {
			lit := chip.Lit()
			on := c.shade(chip.Intensity)
			if chip.Test {
				on = c.shade(max7219.MaxIntensity)
			}
			for col := range max7219.Columns {
				if lit[row]&(0x80>>uint(col)) != 0 {
					_, _ = io.WriteString(&c.buf, c.palette.Block(on))
				} else {
					_, _ = io.WriteString(&c.buf, c.palette.Block(c.off))
				}
			}
		}
		_, _ = c.buf.WriteString("\033[0m\n")
	}
	c.lines = max7219.Rows
	_, err := c.buf.WriteTo(c.w)
	return err
}

// Run renders every snapshot received on ch until ctx is done or ch is
// closed.
func (c *Console) Run(ctx context.Context, ch <-chan []ChipState) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chips, ok := <-ch:
			if !ok {
				return nil
			}
			if err := c.Render(chips); err != nil {
				return err
			}
		}
	}
}

var _ fmt.Stringer = &Console{}
