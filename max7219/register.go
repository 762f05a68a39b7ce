// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

import (
	"fmt"
	"math"
)

// Register is the address half of a 16 bit MAX7219 command word.
type Register byte

// Register map. Refer to table 2 of the datasheet.
const (
	RegNoOp        Register = 0x0
	RegDigit0      Register = 0x1 // Digit registers are RegDigit0+row, row 0-7.
	RegDecodeMode  Register = 0x9
	RegIntensity   Register = 0xa
	RegScanLimit   Register = 0xb
	RegShutdown    Register = 0xc
	RegDisplayTest Register = 0xf
)

const (
	// Rows is the number of digit registers, and the height of a matrix.
	Rows = 8
	// Columns is the width in LEDs of one 8x8 matrix unit.
	Columns = 8
	// MaxIntensity is the highest value accepted by the intensity register.
	MaxIntensity = 15
)

// DecodeMode is the mode for handling data. Refer to the datasheet for
// more information.
type DecodeMode byte

const (
	// DecodeNone is RAW mode, or not decoded. For each byte, bits that are
	// one are turned on in the matrix, and bits that are 0 turn off the
	// led at that row/column. This is the only mode used for matrices.
	DecodeNone DecodeMode = 0x00
	// DecodeB0 decodes digit 0 only with the Code B font.
	DecodeB0 DecodeMode = 0x01
	// DecodeB30 decodes digits 3-0 with the Code B font.
	DecodeB30 DecodeMode = 0x0f
	// DecodeB decodes all digits with the Code B font.
	DecodeB DecodeMode = 0xff
)

// Mode is the value of the shutdown register.
type Mode byte

const (
	// ModeShutdown blanks the display. Register content is retained.
	ModeShutdown Mode = 0
	// ModeNormal is normal operation.
	ModeNormal Mode = 1
)

func (m Mode) String() string {
	switch m {
	case ModeShutdown:
		return "shutdown"
	case ModeNormal:
		return "normal"
	}
	return fmt.Sprintf("Mode(%d)", byte(m))
}

// Word is a single register write for one chip.
type Word struct {
	Addr Register
	Data byte
}

// NoOp is shifted through chips that must not change. Every chip still needs
// a full 16 bit word so the chain stays aligned.
var NoOp = Word{Addr: RegNoOp}

func (w Word) String() string {
	return fmt.Sprintf("{0x%x 0x%02x}", byte(w.Addr), w.Data)
}

// OpKind identifies a logical chip operation.
type OpKind int

const (
	OpNoOp OpKind = iota
	OpRow
	OpIntensity
	OpScanLimit
	OpMode
	OpDecodeMode
	OpTest
)

// Op is a logical operation on one chip. Use the constructors below rather
// than filling it by hand.
type Op struct {
	Kind  OpKind
	Index int
	Value int
}

// SetRow writes the 8 LEDs of row index (0-7). The MSB is the leftmost LED.
func SetRow(index int, data byte) Op {
	return Op{Kind: OpRow, Index: index, Value: int(data)}
}

// SetIntensity sets the PWM duty cycle register (0-15).
func SetIntensity(level int) Op {
	return Op{Kind: OpIntensity, Value: level}
}

// SetScanLimit sets how many digit registers are scanned, 0-7 meaning rows
// 0..limit.
func SetScanLimit(limit int) Op {
	return Op{Kind: OpScanLimit, Value: limit}
}

// SetMode selects shutdown or normal operation.
func SetMode(m Mode) Op {
	return Op{Kind: OpMode, Value: int(m)}
}

// SetDecodeMode selects the decode mode.
func SetDecodeMode(m DecodeMode) Op {
	return Op{Kind: OpDecodeMode, Value: int(m)}
}

// SetTest turns display test mode on or off. In test mode every LED is lit at
// full intensity regardless of the digit registers.
func SetTest(on bool) Op {
	v := 0
	if on {
		v = 1
	}
	return Op{Kind: OpTest, Value: v}
}

// Encode converts op into the command word understood by one chip.
//
// It is pure: an invalid argument returns an error wrapping ErrOutOfRange and
// the caller must not send anything.
func Encode(op Op) (Word, error) {
	switch op.Kind {
	case OpNoOp:
		return NoOp, nil
	case OpRow:
		if op.Index < 0 || op.Index >= Rows {
			return Word{}, outOfRange("row index %d", op.Index)
		}
		if op.Value < 0 || op.Value > 0xff {
			return Word{}, outOfRange("row data %d", op.Value)
		}
		return Word{Addr: RegDigit0 + Register(op.Index), Data: byte(op.Value)}, nil
	case OpIntensity:
		if op.Value < 0 || op.Value > MaxIntensity {
			return Word{}, outOfRange("intensity %d", op.Value)
		}
		return Word{Addr: RegIntensity, Data: byte(op.Value)}, nil
	case OpScanLimit:
		if op.Value < 0 || op.Value >= Rows {
			return Word{}, outOfRange("scan limit %d", op.Value)
		}
		return Word{Addr: RegScanLimit, Data: byte(op.Value)}, nil
	case OpMode:
		switch Mode(op.Value) {
		case ModeShutdown, ModeNormal:
			return Word{Addr: RegShutdown, Data: byte(op.Value)}, nil
		}
		return Word{}, outOfRange("mode %d", op.Value)
	case OpDecodeMode:
		if op.Value >= 0 && op.Value <= 0xff {
			switch DecodeMode(op.Value) {
			case DecodeNone, DecodeB0, DecodeB30, DecodeB:
				return Word{Addr: RegDecodeMode, Data: byte(op.Value)}, nil
			}
		}
		return Word{}, outOfRange("decode mode 0x%x", op.Value)
	case OpTest:
		if op.Value != 0 && op.Value != 1 {
			return Word{}, outOfRange("test mode %d", op.Value)
		}
		return Word{Addr: RegDisplayTest, Data: byte(op.Value)}, nil
	}
	return Word{}, outOfRange("operation kind %d", op.Kind)
}

// IntensityFromFraction maps a perceived brightness in [0, 1] to an intensity
// register value.
//
// The MAX7219 duty cycle is linear in the register value. With gamma > 0 the
// fraction is raised to that power first, so that gamma 2.2 gives steps that
// look even to the eye. gamma <= 0 is a plain linear mapping.
func IntensityFromFraction(f, gamma float64) (int, error) {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return 0, outOfRange("brightness fraction %g", f)
	}
	if gamma > 0 {
		f = math.Pow(f, gamma)
	}
	return int(math.Round(f * MaxIntensity)), nil
}
