// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package max7219

// Sequence is the list of words for one transaction on a cascade, indexed by
// chip position. Position 0 is the unit wired to the controller.
type Sequence []Word

// Bytes serializes the sequence in the order it is shifted out on the bus.
//
// Data enters the chain at position 0 and is pushed one unit further with
// every new word, so the word for the farthest unit goes out first and the
// word for position 0 goes out last.
func (s Sequence) Bytes() []byte {
	w := make([]byte, 0, 2*len(s))
	for pos := len(s) - 1; pos >= 0; pos-- {
		w = append(w, byte(s[pos].Addr), s[pos].Data)
	}
	return w
}

// BuildSequence returns a sequence of length words where only target receives
// w and every other unit receives NoOp.
func BuildSequence(length, target int, w Word) (Sequence, error) {
	if length < 1 {
		return nil, outOfRange("cascade length %d", length)
	}
	if target < 0 || target >= length {
		return nil, outOfRange("unit %d of %d", target, length)
	}
	s := make(Sequence, length)
	for ix := range s {
		s[ix] = NoOp
	}
	s[target] = w
	return s, nil
}

// BuildBatch returns a sequence updating several units in the same
// transaction. Units absent from perChip receive NoOp.
func BuildBatch(length int, perChip map[int]Word) (Sequence, error) {
	if length < 1 {
		return nil, outOfRange("cascade length %d", length)
	}
	s := make(Sequence, length)
	for ix := range s {
		s[ix] = NoOp
	}
	for pos, w := range perChip {
		if pos < 0 || pos >= length {
			return nil, outOfRange("unit %d of %d", pos, length)
		}
		s[pos] = w
	}
	return s, nil
}

// Broadcast returns a sequence sending the same word to every unit.
func Broadcast(length int, w Word) (Sequence, error) {
	if length < 1 {
		return nil, outOfRange("cascade length %d", length)
	}
	s := make(Sequence, length)
	for ix := range s {
		s[ix] = w
	}
	return s, nil
}
