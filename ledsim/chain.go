// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ledsim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/ledchain/max7219"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

var (
	// ErrInjected is returned by Write once the FailAfter budget is spent.
	ErrInjected = errors.New("ledsim: injected bus failure")
	// ErrOddLength is returned for a transaction that is not made of whole
	// 16 bit words.
	ErrOddLength = errors.New("ledsim: transaction length is not a multiple of 2")
)

// ChipState is the register file of one emulated MAX7219.
type ChipState struct {
	Rows      [max7219.Rows]byte `json:"rows"`
	Intensity int                `json:"intensity"`
	ScanLimit int                `json:"scan_limit"`
	Decode    byte               `json:"decode"`
	Shutdown  bool               `json:"shutdown"`
	Test      bool               `json:"test"`
}

// Lit returns the rows as the LEDs show them, taking shutdown, test mode and
// the scan limit into account.
func (s ChipState) Lit() [max7219.Rows]byte {
	var out [max7219.Rows]byte
	switch {
	case s.Test:
		for ix := range out {
			out[ix] = 0xff
		}
	case s.Shutdown:
		// Blank.
	default:
		for ix := 0; ix <= s.ScanLimit && ix < max7219.Rows; ix++ {
			out[ix] = s.Rows[ix]
		}
	}
	return out
}

// apply executes one latched word.
func (s *ChipState) apply(w max7219.Word) {
	switch {
	case w.Addr >= max7219.RegDigit0 && w.Addr < max7219.RegDigit0+max7219.Rows:
		s.Rows[w.Addr-max7219.RegDigit0] = w.Data
	case w.Addr == max7219.RegDecodeMode:
		s.Decode = w.Data
	case w.Addr == max7219.RegIntensity:
		s.Intensity = int(w.Data & 0x0f)
	case w.Addr == max7219.RegScanLimit:
		s.ScanLimit = int(w.Data & 0x07)
	case w.Addr == max7219.RegShutdown:
		s.Shutdown = w.Data&1 == 0
	case w.Addr == max7219.RegDisplayTest:
		s.Test = w.Data&1 == 1
	}
	// RegNoOp and unused addresses are ignored by the chip.
}

// Chain emulates a cascade of MAX7219 units.
//
// Each unit is a 16 bit shift register whose output feeds the next unit.
// Words enter at position 0; when chip-select is released every unit latches
// the word currently in its shift register. Like the real chain, the shift
// registers keep their content between transactions, so a transaction with
// too few words makes far units execute stale words.
//
// Chain implements max7219.Bus, spi.Port and spi.Conn. It is safe for
// concurrent use.
type Chain struct {
	mu     sync.Mutex
	chips  []ChipState
	shift  []max7219.Word
	txs    int
	budget int
	subs   map[chan []ChipState]struct{}
}

// NewChain returns a chain of units emulated chips in their power-up state:
// shutdown mode, blank rows, minimum intensity. A chain has at least one
// unit.
func NewChain(units int) *Chain {
	if units < 1 {
		units = 1
	}
	c := &Chain{
		chips:  make([]ChipState, units),
		shift:  make([]max7219.Word, units),
		budget: -1,
		subs:   map[chan []ChipState]struct{}{},
	}
	for ix := range c.chips {
		c.chips[ix].Shutdown = true
	}
	return c
}

func (c *Chain) String() string {
	return fmt.Sprintf("ledsim.Chain{units=%d}", len(c.chips))
}

// Units returns the number of emulated chips.
func (c *Chain) Units() int {
	return len(c.chips)
}

// Transactions returns the number of transactions latched so far.
func (c *Chain) Transactions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.txs
}

// FailAfter makes every transaction after the next n fail with ErrInjected.
// A negative n disables failure injection.
func (c *Chain) FailAfter(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.budget = n
}

// Write implements max7219.Bus.
func (c *Chain) Write(ctx context.Context, w []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.transaction(w)
}

func (c *Chain) transaction(w []byte) error {
	c.mu.Lock()
	if len(w)%2 != 0 {
		c.mu.Unlock()
		return ErrOddLength
	}
	if c.budget == 0 {
		c.mu.Unlock()
		return ErrInjected
	}
	if c.budget > 0 {
		c.budget--
	}
	for ix := 0; ix < len(w); ix += 2 {
		copy(c.shift[1:], c.shift[:len(c.shift)-1])
		c.shift[0] = max7219.Word{Addr: max7219.Register(w[ix] & 0x0f), Data: w[ix+1]}
	}
	for pos := range c.chips {
		c.chips[pos].apply(c.shift[pos])
	}
	c.txs++
	c.publishLocked()
	c.mu.Unlock()
	return nil
}

// publishLocked hands the current registers to every subscriber without
// blocking. Slow subscribers only keep the latest snapshot.
func (c *Chain) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Snapshot returns a copy of every chip's registers, position 0 first.
func (c *Chain) Snapshot() []ChipState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Chain) snapshotLocked() []ChipState {
	return append([]ChipState(nil), c.chips...)
}

// Subscribe returns a channel receiving a snapshot after every transaction.
// Slow receivers only get the latest one. Call cancel to stop the
// subscription; the channel is then closed.
func (c *Chain) Subscribe() (<-chan []ChipState, func()) {
	ch := make(chan []ChipState, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Connect implements spi.Port.
func (c *Chain) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	if bits != 8 {
		return nil, fmt.Errorf("ledsim: unsupported bits per word %d", bits)
	}
	return c, nil
}

// LimitSpeed implements spi.Port.
func (c *Chain) LimitSpeed(f physic.Frequency) error {
	return nil
}

// Close implements io.Closer.
func (c *Chain) Close() error {
	return nil
}

// Tx implements spi.Conn. The chain has no readable output; r is zeroed.
func (c *Chain) Tx(w, r []byte) error {
	for ix := range r {
		r[ix] = 0
	}
	return c.transaction(w)
}

// TxPackets implements spi.Conn. Packets with KeepCS set are merged with the
// next one into a single transaction.
func (c *Chain) TxPackets(p []spi.Packet) error {
	var buf []byte
	for _, pkt := range p {
		buf = append(buf, pkt.W...)
		for ix := range pkt.R {
			pkt.R[ix] = 0
		}
		if pkt.KeepCS {
			continue
		}
		if err := c.transaction(buf); err != nil {
			return err
		}
		buf = buf[:0]
	}
	if len(buf) != 0 {
		return c.transaction(buf)
	}
	return nil
}

// Duplex implements conn.Conn.
func (c *Chain) Duplex() conn.Duplex {
	return conn.Full
}

var _ max7219.Bus = &Chain{}
var _ spi.PortCloser = &Chain{}
var _ spi.Conn = &Chain{}
