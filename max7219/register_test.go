// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncode(t *testing.T) {
	for _, tc := range []struct {
		name string
		op   Op
		want Word
	}{
		{name: "noop", op: Op{Kind: OpNoOp}, want: Word{RegNoOp, 0}},
		{name: "row 0", op: SetRow(0, 0x81), want: Word{0x1, 0x81}},
		{name: "row 7", op: SetRow(7, 0xff), want: Word{0x8, 0xff}},
		{name: "intensity min", op: SetIntensity(0), want: Word{RegIntensity, 0}},
		{name: "intensity max", op: SetIntensity(15), want: Word{RegIntensity, 0x0f}},
		{name: "scan limit", op: SetScanLimit(7), want: Word{RegScanLimit, 7}},
		{name: "shutdown", op: SetMode(ModeShutdown), want: Word{RegShutdown, 0}},
		{name: "normal", op: SetMode(ModeNormal), want: Word{RegShutdown, 1}},
		{name: "decode raw", op: SetDecodeMode(DecodeNone), want: Word{RegDecodeMode, 0}},
		{name: "decode B", op: SetDecodeMode(DecodeB), want: Word{RegDecodeMode, 0xff}},
		{name: "test on", op: SetTest(true), want: Word{RegDisplayTest, 1}},
		{name: "test off", op: SetTest(false), want: Word{RegDisplayTest, 0}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Encode(tc.op)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("Encode() difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestEncodeOutOfRange(t *testing.T) {
	for _, tc := range []struct {
		name string
		op   Op
	}{
		{name: "row -1", op: SetRow(-1, 0)},
		{name: "row 8", op: SetRow(8, 0)},
		{name: "row data", op: Op{Kind: OpRow, Index: 0, Value: 0x100}},
		{name: "intensity 16", op: SetIntensity(16)},
		{name: "intensity -1", op: SetIntensity(-1)},
		{name: "scan limit 8", op: SetScanLimit(8)},
		{name: "mode", op: SetMode(Mode(2))},
		{name: "decode", op: SetDecodeMode(DecodeMode(0x02))},
		{name: "decode overflow", op: Op{Kind: OpDecodeMode, Value: 0x1ff}},
		{name: "test", op: Op{Kind: OpTest, Value: 2}},
		{name: "kind", op: Op{Kind: OpKind(99)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Encode(tc.op); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("Encode(%+v) = %v, want ErrOutOfRange", tc.op, err)
			}
		})
	}
}

func TestIntensityFromFraction(t *testing.T) {
	for _, tc := range []struct {
		f, gamma float64
		want     int
	}{
		{0, 0, 0},
		{1, 0, 15},
		{0.5, 0, 8},
		{1, 2.2, 15},
		{0.5, 2.2, 3},
		{0.2, 1, 3},
	} {
		got, err := IntensityFromFraction(tc.f, tc.gamma)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("IntensityFromFraction(%g, %g) = %d, want %d", tc.f, tc.gamma, got, tc.want)
		}
	}
	for _, f := range []float64{-0.1, 1.1, math.NaN()} {
		if _, err := IntensityFromFraction(f, 0); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("IntensityFromFraction(%g) = %v, want ErrOutOfRange", f, err)
		}
	}
}
