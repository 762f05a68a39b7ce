// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/spi/spitest"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// newDev returns an initialized Dev on a recorder with the init transactions
// already discarded.
func newDev(t *testing.T, units int) (*Dev, *spitest.Record) {
	t.Helper()
	record := &spitest.Record{}
	dev, err := NewSPI(record, &Opts{Units: units, Intensity: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	record.Ops = make([]conntest.IO, 0)
	return dev, record
}

func TestNewInvalid(t *testing.T) {
	for _, opts := range []Opts{
		{Units: 0},
		{Units: -2},
		{Units: 1, Intensity: 16},
	} {
		if _, err := New(&fakeBus{}, &opts); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("New(%+v) = %v, want ErrOutOfRange", opts, err)
		}
	}
}

func TestInit(t *testing.T) {
	record := &spitest.Record{}
	dev, err := NewSPI(record, &Opts{Units: 1, Intensity: 8})
	if err != nil {
		t.Fatal(err)
	}
	if len(record.Ops) != 0 {
		t.Errorf("NewSPI sent %d transactions, want none before Init", len(record.Ops))
	}
	if err := dev.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{
		{0xc, 0x1}, // Shutdown - Resume Normal Mode
		{0xb, 0x7}, // Scan Limit
		{0x9, 0x0}, // Decode Mode
		{0xf, 0x0}, // Disable self-test
		{0xa, 0x8}, // Intensity
	}
	if diff := cmp.Diff(writes(record.Ops), want); diff != "" {
		t.Errorf("Init() difference (-got +want):\n%s", diff)
	}
}

func TestCommitAfterInitRewritesEverything(t *testing.T) {
	dev, record := newDev(t, 2)
	if err := dev.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	var want [][]byte
	for row := byte(1); row <= 8; row++ {
		want = append(want, []byte{row, 0, row, 0})
	}
	if diff := cmp.Diff(writes(record.Ops), want); diff != "" {
		t.Errorf("Commit() difference (-got +want):\n%s", diff)
	}
}

func TestDrawingIsLocal(t *testing.T) {
	dev, record := newDev(t, 2)
	_ = dev.Commit(context.Background())
	record.Ops = make([]conntest.IO, 0)

	_ = dev.Pixel(3, 3, true)
	_ = dev.DrawBitmap(image.Pt(8, 0), image1bit.NewVerticalLSB(image.Rect(0, 0, 8, 8)))
	dev.Clear()
	_ = dev.Pixel(15, 0, true)
	if len(record.Ops) != 0 {
		t.Fatalf("drawing sent %d transactions before Commit", len(record.Ops))
	}
	if err := dev.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{{0x1, 0x01, 0x0, 0x0}}
	if diff := cmp.Diff(writes(record.Ops), want); diff != "" {
		t.Errorf("Commit() difference (-got +want):\n%s", diff)
	}
}

func TestToggleIdempotence(t *testing.T) {
	ctx := context.Background()

	toggled, toggledRec := newDev(t, 3)
	_ = toggled.Pixel(17, 2, true)
	_ = toggled.Pixel(17, 2, false)
	if err := toggled.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	untouched, untouchedRec := newDev(t, 3)
	if err := untouched.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(writes(toggledRec.Ops), writes(untouchedRec.Ops)); diff != "" {
		t.Errorf("toggled vs untouched difference (-toggled +untouched):\n%s", diff)
	}

	// And once everything is in sync, a toggle sends nothing at all.
	toggledRec.Ops = make([]conntest.IO, 0)
	_ = toggled.Pixel(0, 0, true)
	_ = toggled.Pixel(0, 0, false)
	if err := toggled.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	if len(toggledRec.Ops) != 0 {
		t.Errorf("toggle sent %d transactions", len(toggledRec.Ops))
	}
}

func TestDrawBitmapAllOn(t *testing.T) {
	dev, record := newDev(t, 1)
	if err := dev.DrawBitmap(image.Point{}, onImage(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	if err := dev.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{
		{0x1, 0xff}, {0x2, 0xff}, {0x3, 0xff}, {0x4, 0xff},
		{0x5, 0xff}, {0x6, 0xff}, {0x7, 0xff}, {0x8, 0xff},
	}
	if diff := cmp.Diff(writes(record.Ops), want); diff != "" {
		t.Errorf("Commit() difference (-got +want):\n%s", diff)
	}
}

func TestClearAfterCommit(t *testing.T) {
	dev, _ := newDev(t, 4)
	if err := dev.Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
	dev.Clear()
	if got := dev.Framebuffer().DrainDirty(); len(got) != 0 {
		t.Errorf("DrainDirty() = %v, want nothing", got)
	}
}

func TestPixelOutOfBounds(t *testing.T) {
	dev, _ := newDev(t, 2)
	_ = dev.Commit(context.Background())
	_ = dev.Pixel(4, 4, true)
	if err := dev.Pixel(16, 0, true); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Pixel(16, 0) = %v, want ErrOutOfBounds", err)
	}
	want := []RowUpdate{{Unit: 0, Row: 4, Data: 0x08}}
	if diff := cmp.Diff(dev.Framebuffer().DrainDirty(), want); diff != "" {
		t.Errorf("DrainDirty() difference (-got +want):\n%s", diff)
	}
}

func TestCommitFailureKeepsRowsDirty(t *testing.T) {
	ctx := context.Background()
	bus := &fakeBus{}
	dev, err := New(bus, &Opts{Units: 2, Intensity: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := dev.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	_ = dev.Pixel(9, 6, true)
	bus.failAt = bus.calls + 1
	if err := dev.Commit(ctx); !errors.Is(err, ErrBus) {
		t.Fatalf("Commit() = %v, want ErrBus", err)
	}

	bus.writes = nil
	if err := dev.Init(ctx); err != nil {
		t.Fatal(err)
	}
	if err := dev.Commit(ctx); err != nil {
		t.Fatal(err)
	}
	// 5 init broadcasts, then all 8 rows, row 6 carrying the pixel.
	if len(bus.writes) != 5+8 {
		t.Fatalf("got %d transactions, want 13", len(bus.writes))
	}
	if diff := cmp.Diff(bus.writes[5+6], []byte{0x7, 0x40, 0x7, 0x0}); diff != "" {
		t.Errorf("row 6 difference (-got +want):\n%s", diff)
	}
}

func TestBrightness(t *testing.T) {
	dev, record := newDev(t, 2)
	ctx := context.Background()
	if err := dev.SetBrightness(ctx, 15); err != nil {
		t.Fatal(err)
	}
	if err := dev.SetUnitBrightness(ctx, 0, 2); err != nil {
		t.Fatal(err)
	}
	if err := dev.SetBrightness(ctx, 16); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetBrightness(16) = %v, want ErrOutOfRange", err)
	}
	want := [][]byte{
		{0xa, 0xf, 0xa, 0xf},
		{0x0, 0x0, 0xa, 0x2},
	}
	if diff := cmp.Diff(writes(record.Ops), want); diff != "" {
		t.Errorf("brightness difference (-got +want):\n%s", diff)
	}
	if dev.Intensity(0) != 2 || dev.Intensity(1) != 15 {
		t.Errorf("Intensity() = %d, %d, want 2, 15", dev.Intensity(0), dev.Intensity(1))
	}

	// Init restores the last SetBrightness level.
	record.Ops = make([]conntest.IO, 0)
	_ = dev.Init(ctx)
	if diff := cmp.Diff(record.Ops[4].W, []byte{0xa, 0xf, 0xa, 0xf}); diff != "" {
		t.Errorf("Init() intensity difference (-got +want):\n%s", diff)
	}
}

func TestShutdownWake(t *testing.T) {
	dev, record := newDev(t, 1)
	ctx := context.Background()
	_ = dev.Shutdown(ctx)
	_ = dev.Wake(ctx)
	_ = dev.TestDisplay(ctx, true)
	_ = dev.TestDisplay(ctx, false)
	_ = dev.Halt()
	want := [][]byte{{0xc, 0x0}, {0xc, 0x1}, {0xf, 0x1}, {0xf, 0x0}, {0xc, 0x0}}
	if diff := cmp.Diff(writes(record.Ops), want); diff != "" {
		t.Errorf("difference (-got +want):\n%s", diff)
	}
}

func TestDrawer(t *testing.T) {
	dev, record := newDev(t, 2)
	_ = dev.Commit(context.Background())
	record.Ops = make([]conntest.IO, 0)

	if dev.Bounds() != image.Rect(0, 0, 16, 8) {
		t.Errorf("Bounds() = %v", dev.Bounds())
	}
	// Partially outside the display: clipped, and committed right away.
	if err := dev.Draw(image.Rect(14, 6, 20, 10), &image.Uniform{image1bit.On}, image.Point{}); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{
		{0x7, 0x03, 0x0, 0x0},
		{0x8, 0x03, 0x0, 0x0},
	}
	if diff := cmp.Diff(writes(record.Ops), want, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Draw() difference (-got +want):\n%s", diff)
	}
}
