// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ledchain drives chains of cascaded MAX7219 8x8 LED matrices.
//
// The driver lives in package max7219. Package ledsim emulates a chain so
// drawing code can be run and tested without hardware, and cmd/ledchain is a
// demo showing a test pattern on either.
package ledchain
