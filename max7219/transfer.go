// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Bus writes one complete transaction to the cascade.
//
// Write returns once every byte of w has been shifted out with chip-select
// held for the whole transfer, or on failure. The MAX7219 latches on the
// rising edge of LOAD/CS, so a transaction must never be split.
type Bus interface {
	Write(ctx context.Context, w []byte) error
}

// resetPulse is how long Init holds the reset line low.
const resetPulse = time.Millisecond

// ConnBus adapts a periph spi.Conn to Bus.
//
// If CS is set, it is driven low around every Tx for boards where the SPI
// port does not manage chip-select itself. Reset, when set, is pulsed by
// ResetPulse.
type ConnBus struct {
	Conn  spi.Conn
	CS    gpio.PinOut
	Reset gpio.PinOut
}

// Write implements Bus.
//
// spi.Conn.Tx cannot be interrupted, so ctx is only checked before the
// transfer starts and once it returns.
func (b *ConnBus) Write(ctx context.Context, w []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	eh := errorHandler{b: b}
	eh.csOut(gpio.Low)
	eh.tx(w)
	eh.csRelease()
	if eh.err != nil {
		return eh.err
	}
	return ctx.Err()
}

// ResetPulse holds the reset line low for d. It is a no-op without a reset
// line.
func (b *ConnBus) ResetPulse(d time.Duration) error {
	if b.Reset == nil {
		return nil
	}
	if err := b.Reset.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(d)
	return b.Reset.Out(gpio.High)
}

func (b *ConnBus) String() string {
	if b.CS != nil {
		return fmt.Sprintf("%s, cs=%s", b.Conn, b.CS)
	}
	return b.Conn.String()
}

// errorHandler stops issuing commands after the first failure.
type errorHandler struct {
	b   *ConnBus
	err error
}

func (eh *errorHandler) csOut(l gpio.Level) {
	if eh.err != nil || eh.b.CS == nil {
		return
	}
	eh.err = eh.b.CS.Out(l)
}

// csRelease drives chip-select high even after a failure. The first error is
// kept.
func (eh *errorHandler) csRelease() {
	if eh.b.CS == nil {
		return
	}
	if err := eh.b.CS.Out(gpio.High); eh.err == nil {
		eh.err = err
	}
}

func (eh *errorHandler) tx(w []byte) {
	if eh.err != nil {
		return
	}
	eh.err = eh.b.Conn.Tx(w, nil)
}

// Transfer owns the bus of one cascade and turns logical updates into
// complete, correctly aligned transactions.
//
// Every method blocks until the transaction is done. Failures are returned as
// *BusError and never retried: a second write while units are mid-shift would
// land on the wrong chips.
type Transfer struct {
	bus       Bus
	units     int
	intensity []int
	log       zerolog.Logger
}

// NewTransfer returns a Transfer for units cascaded chips on bus.
func NewTransfer(bus Bus, units int, log *zerolog.Logger) (*Transfer, error) {
	if units < 1 {
		return nil, outOfRange("cascade length %d", units)
	}
	t := &Transfer{bus: bus, units: units, intensity: make([]int, units), log: zerolog.Nop()}
	if log != nil {
		t.log = *log
	}
	return t, nil
}

// Units returns the cascade length.
func (t *Transfer) Units() int {
	return t.units
}

// Intensity returns the last intensity successfully sent to unit pos.
func (t *Transfer) Intensity(pos int) int {
	if pos < 0 || pos >= t.units {
		return 0
	}
	return t.intensity[pos]
}

// send issues one transaction.
func (t *Transfer) send(ctx context.Context, op string, s Sequence) error {
	if len(s) != t.units {
		return outOfRange("sequence of %d words for %d units", len(s), t.units)
	}
	w := s.Bytes()
	t.log.Debug().Str("op", op).Hex("data", w).Msg("max7219 tx")
	if err := t.bus.Write(ctx, w); err != nil {
		t.log.Warn().Err(err).Str("op", op).Msg("max7219 transaction failed")
		return &BusError{Op: op, Err: err}
	}
	return nil
}

// broadcast encodes op and sends it to every unit.
func (t *Transfer) broadcast(ctx context.Context, name string, op Op) error {
	w, err := Encode(op)
	if err != nil {
		return err
	}
	seq, err := Broadcast(t.units, w)
	if err != nil {
		return err
	}
	return t.send(ctx, name, seq)
}

// Init brings every unit into a known configuration: normal operation, all 8
// rows scanned, raw (matrix) decoding, test mode off and the given intensity.
//
// The row registers are not touched. On error the hardware state is undefined
// and Init must be run again.
func (t *Transfer) Init(ctx context.Context, intensity int) error {
	ops := []struct {
		name string
		op   Op
	}{
		{"init mode", SetMode(ModeNormal)},
		{"init scan limit", SetScanLimit(Rows - 1)},
		{"init decode mode", SetDecodeMode(DecodeNone)},
		{"init test", SetTest(false)},
		{"init intensity", SetIntensity(intensity)},
	}
	// Nothing is sent unless every word encodes.
	words := make([]Word, len(ops))
	for ix, o := range ops {
		w, err := Encode(o.op)
		if err != nil {
			return err
		}
		words[ix] = w
	}
	for ix, o := range ops {
		seq, err := Broadcast(t.units, words[ix])
		if err != nil {
			return err
		}
		if err := t.send(ctx, o.name, seq); err != nil {
			return err
		}
	}
	for ix := range t.intensity {
		t.intensity[ix] = intensity
	}
	return nil
}

// Flush writes rows. Each distinct row index becomes one transaction covering
// every unit that needs it, in ascending row order. Units not listed for a
// row receive NoOp.
//
// On error, the rows sent before the failure may or may not have latched.
func (t *Transfer) Flush(ctx context.Context, rows []RowUpdate) error {
	var byRow [Rows]map[int]Word
	for _, r := range rows {
		if r.Unit < 0 || r.Unit >= t.units {
			return outOfRange("unit %d of %d", r.Unit, t.units)
		}
		w, err := Encode(SetRow(r.Row, r.Data))
		if err != nil {
			return err
		}
		if byRow[r.Row] == nil {
			byRow[r.Row] = make(map[int]Word)
		}
		byRow[r.Row][r.Unit] = w
	}
	for row, perChip := range byRow {
		if perChip == nil {
			continue
		}
		s, err := BuildBatch(t.units, perChip)
		if err != nil {
			return err
		}
		if err := t.send(ctx, fmt.Sprintf("flush row %d", row), s); err != nil {
			return err
		}
	}
	return nil
}

// SetIntensity changes the brightness of one unit.
func (t *Transfer) SetIntensity(ctx context.Context, pos, level int) error {
	w, err := Encode(SetIntensity(level))
	if err != nil {
		return err
	}
	s, err := BuildSequence(t.units, pos, w)
	if err != nil {
		return err
	}
	if err := t.send(ctx, "intensity", s); err != nil {
		return err
	}
	t.intensity[pos] = level
	return nil
}

// SetIntensityAll changes the brightness of every unit.
func (t *Transfer) SetIntensityAll(ctx context.Context, level int) error {
	if err := t.broadcast(ctx, "intensity", SetIntensity(level)); err != nil {
		return err
	}
	for ix := range t.intensity {
		t.intensity[ix] = level
	}
	return nil
}

// SetMode puts every unit in shutdown or normal mode.
func (t *Transfer) SetMode(ctx context.Context, m Mode) error {
	return t.broadcast(ctx, "mode "+m.String(), SetMode(m))
}

// SetTest turns display test mode on or off on every unit.
func (t *Transfer) SetTest(ctx context.Context, on bool) error {
	return t.broadcast(ctx, "test", SetTest(on))
}
