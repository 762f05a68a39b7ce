// Copyright 2017 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ledsim_test

import (
	"bytes"
	"context"
	"image/color"
	"strings"
	"testing"

	"github.com/maruel/ansi256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GermanBionicSystems/ledchain/ledsim"
)

func TestConsoleRender(t *testing.T) {
	on := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	off := color.NRGBA{A: 255}
	buf := bytes.Buffer{}
	c := ledsim.NewConsole(&buf, &ledsim.ConsoleOpts{On: on, Off: off})
	assert.Equal(t, "ledsim.Console", c.String())

	chips := []ledsim.ChipState{
		{Rows: [8]byte{0x80}, Intensity: 15, ScanLimit: 7},
		{Rows: [8]byte{0xff}, Intensity: 15, ScanLimit: 7, Shutdown: true},
	}
	require.NoError(t, c.Render(chips))

	p := ansi256.Default
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 8)
	want := "\r\033[0m" + p.Block(on) + strings.Repeat(p.Block(off), 15) + "\033[0m"
	assert.Equal(t, want, lines[0])
	want = "\r\033[0m" + strings.Repeat(p.Block(off), 16) + "\033[0m"
	assert.Equal(t, want, lines[1])

	// The next frame overwrites the previous one.
	buf.Reset()
	require.NoError(t, c.Render(chips))
	assert.True(t, strings.HasPrefix(buf.String(), "\033[8A"))

	buf.Reset()
	require.NoError(t, c.Halt())
	assert.Equal(t, "\n\033[0m", buf.String())
}

func TestConsoleRun(t *testing.T) {
	buf := bytes.Buffer{}
	c := ledsim.NewConsole(&buf, nil)
	ch := make(chan []ledsim.ChipState, 1)
	ch <- []ledsim.ChipState{{}}
	close(ch)
	require.NoError(t, c.Run(context.Background(), ch))
	assert.Equal(t, 8, strings.Count(buf.String(), "\n"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Run(ctx, make(chan []ledsim.ChipState)), context.Canceled)
}
