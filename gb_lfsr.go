// gb_lfsr.go - Noise channel linear feedback shift register.

package main

const gbLFSRMask = 0x7FFF

// gbLFSR is a 15-bit register shifted left, with XNOR feedback from bits 14
// and 13 entering at bit 0. In narrow mode the feedback is also forced into
// bit 8, which makes bits 8-14 a delayed copy of a 7-bit sequence.
type gbLFSR struct {
	state  uint16
	narrow bool
}

func (l *gbLFSR) Reset() {
	l.state = 0
}

func (l *gbLFSR) SetNarrow(narrow bool) {
	l.narrow = narrow
}

func (l *gbLFSR) Narrow() bool {
	return l.narrow
}

func (l *gbLFSR) State() uint16 {
	return l.state
}

// Next advances the register and returns the new output bit.
func (l *gbLFSR) Next() uint8 {
	fb := ^(l.state>>14 ^ l.state>>13) & 1
	l.state = (l.state<<1 | fb) & gbLFSRMask
	if l.narrow {
		l.state = l.state&^(1<<8) | fb<<8
	}
	return uint8(^l.state>>14) & 1
}
