// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ledsim emulates a cascade of MAX7219 LED matrix drivers.
//
// Chain implements both max7219.Bus and spi.Port, so a max7219.Dev can be
// driven without hardware. Its state can be shown in a terminal with Console
// or streamed to browsers with Mirror.
package ledsim
