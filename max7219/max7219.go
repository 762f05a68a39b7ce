// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.
//
// The max7219 package drives a chain of cascaded MAX7219/MAX7221 units, each
// controlling an 8x8 LED matrix. Drawing happens in a local framebuffer;
// nothing reaches the LEDs until Commit, which sends only the rows that
// changed, batching every unit of a row into a single bus transaction.
package max7219

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Opts defines the options for the device.
type Opts struct {
	// Units is the number of MAX7219 chips daisy-chained together.
	Units int
	// Intensity is the brightness (0-15) set by Init.
	Intensity int
	// CS is an optional chip-select (LOAD) line driven by software. Leave nil
	// when the SPI port drives its own chip-select.
	CS gpio.PinOut
	// Reset is an optional line pulsed low before Init, for boards that gate
	// the chain's power or level shifter.
	Reset gpio.PinOut
	// Logger receives a debug entry for every bus transaction. Defaults to a
	// disabled logger.
	Logger *zerolog.Logger
}

// DefaultOpts is a four unit 32x8 matrix, the most common module.
var DefaultOpts = Opts{
	Units:     4,
	Intensity: 1,
}

// Dev is a handle to a cascade of MAX7219 matrices.
//
// Dev is not safe for concurrent use. Have one goroutine own it and send it
// drawing requests over a channel if several need to draw.
type Dev struct {
	fb   *Framebuffer
	xfer *Transfer
	bus  Bus
	// intensity is the level restored by Init.
	intensity int
	log       zerolog.Logger
}

// NewSPI returns a Dev communicating over the specified spi.Port.
//
// Call Init before the first Commit.
func NewSPI(p spi.Port, opts *Opts) (*Dev, error) {
	// It works in Mode0, Mode2 and Mode3.
	c, err := p.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("max7219: %v", err)
	}
	return New(&ConnBus{Conn: c, CS: opts.CS, Reset: opts.Reset}, opts)
}

// New returns a Dev writing to bus.
//
// Call Init before the first Commit.
func New(bus Bus, opts *Opts) (*Dev, error) {
	if opts.Units <= 0 {
		return nil, fmt.Errorf("%w: invalid value for number of cascaded units", ErrOutOfRange)
	}
	if opts.Intensity < 0 || opts.Intensity > MaxIntensity {
		return nil, outOfRange("intensity %d", opts.Intensity)
	}
	fb, err := NewFramebuffer(opts.Units)
	if err != nil {
		return nil, err
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("dev", "max7219").Int("units", opts.Units).Logger()
	}
	xfer, err := NewTransfer(bus, opts.Units, &log)
	if err != nil {
		return nil, err
	}
	return &Dev{
		fb:        fb,
		xfer:      xfer,
		bus:       bus,
		intensity: opts.Intensity,
		log:       log,
	}, nil
}

func (d *Dev) String() string {
	return fmt.Sprintf("max7219.Dev{%v, units=%d}", d.bus, d.fb.Units())
}

// Units returns the number of cascaded units.
func (d *Dev) Units() int {
	return d.fb.Units()
}

// Intensity returns the last intensity sent to unit pos.
func (d *Dev) Intensity(pos int) int {
	return d.xfer.Intensity(pos)
}

// Framebuffer gives direct access to the local framebuffer.
func (d *Dev) Framebuffer() *Framebuffer {
	return d.fb
}

// Init configures every unit and schedules a rewrite of all rows on the next
// Commit.
//
// It must be called after power-up, and again after any error wrapping ErrBus
// or a cancelled Commit, since the chain may then hold misaligned words.
func (d *Dev) Init(ctx context.Context) error {
	if cb, ok := d.bus.(*ConnBus); ok {
		if err := cb.ResetPulse(resetPulse); err != nil {
			return &BusError{Op: "reset", Err: err}
		}
	}
	if err := d.xfer.Init(ctx, d.intensity); err != nil {
		return err
	}
	d.fb.Invalidate()
	d.log.Info().Int("intensity", d.intensity).Msg("initialized")
	return nil
}

// Pixel turns the LED at (x, y) on or off in the framebuffer.
func (d *Dev) Pixel(x, y int, on bool) error {
	return d.fb.SetPixel(x, y, on)
}

// DrawBitmap copies src into the framebuffer with src.Bounds().Min at origin.
// The bitmap must fit in Bounds.
func (d *Dev) DrawBitmap(origin image.Point, src image.Image) error {
	return d.fb.DrawBitmap(origin, src)
}

// Clear turns every LED off in the framebuffer.
func (d *Dev) Clear() {
	d.fb.Clear()
}

// Commit sends the rows changed since the last Commit.
//
// On failure the rows are kept dirty; after Init they will be sent again.
func (d *Dev) Commit(ctx context.Context) error {
	rows := d.fb.DrainDirty()
	if len(rows) == 0 {
		return nil
	}
	if err := d.xfer.Flush(ctx, rows); err != nil {
		d.fb.MarkDirty(rows)
		return err
	}
	return nil
}

// SetBrightness sets the intensity (0-15) of every unit. It is also the level
// restored by the next Init.
func (d *Dev) SetBrightness(ctx context.Context, level int) error {
	if err := d.xfer.SetIntensityAll(ctx, level); err != nil {
		return err
	}
	d.intensity = level
	return nil
}

// SetUnitBrightness sets the intensity (0-15) of a single unit.
func (d *Dev) SetUnitBrightness(ctx context.Context, pos, level int) error {
	return d.xfer.SetIntensity(ctx, pos, level)
}

// Shutdown blanks every unit. Registers keep their content.
func (d *Dev) Shutdown(ctx context.Context) error {
	return d.xfer.SetMode(ctx, ModeShutdown)
}

// Wake resumes normal operation after Shutdown.
func (d *Dev) Wake(ctx context.Context) error {
	return d.xfer.SetMode(ctx, ModeNormal)
}

// TestDisplay turns on the display test mode which lights every LED at
// maximum intensity. If you're using multiple units, you should be aware of
// the current draw, and limit how long you leave this on.
func (d *Dev) TestDisplay(ctx context.Context, on bool) error {
	return d.xfer.SetTest(ctx, on)
}

// ColorModel implements display.Drawer.
//
// It is a one bit color model, as implemented by image1bit.Bit.
func (d *Dev) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds implements display.Drawer. Min is guaranteed to be {0, 0}.
func (d *Dev) Bounds() image.Rectangle {
	return d.fb.Bounds()
}

// Draw implements display.Drawer.
//
// Unlike DrawBitmap, the destination is clipped to Bounds. It draws
// synchronously: the changed rows are committed before Draw returns.
func (d *Dev) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	// Double buffering through a 1 bit image lets image/draw do the clipping.
	next := d.fb.Image()
	draw.Src.Draw(next, r, src, sp)
	d.fb.draw(next.Bounds(), next, image.Point{})
	return d.Commit(context.Background())
}

// Halt implements conn.Resource. It puts the units in shutdown mode.
func (d *Dev) Halt() error {
	return d.Shutdown(context.Background())
}

var _ display.Drawer = &Dev{}
var _ fmt.Stringer = &Dev{}
