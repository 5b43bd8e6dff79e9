// gb_bus.go - Page-dispatched 16-bit memory bus.
//
// Each of the 256 pages (address >> 8) owns a read/write handler pair and an
// opaque context. Pages that nobody claims read as 0xFF and drop writes, so a
// lookup can never fail.

package main

const (
	gbPageShift = 8
	gbPageCount = 0x100
)

type gbReadFn func(ctx any, addr uint16) byte
type gbWriteFn func(ctx any, addr uint16, value byte)

type gbPage struct {
	read  gbReadFn
	write gbWriteFn
	ctx   any
}

type GBBus struct {
	pages [gbPageCount]gbPage
}

func NewGBBus() *GBBus {
	bus := &GBBus{}
	bus.Clear()
	return bus
}

// Clear points every page back at the open-bus handler.
func (b *GBBus) Clear() {
	for i := range b.pages {
		b.pages[i] = gbPage{read: openBusRead, write: openBusWrite}
	}
}

// AddHandler installs a handler pair across startPage..endPage inclusive. A
// nil function keeps the open-bus behaviour for that direction.
func (b *GBBus) AddHandler(startPage, endPage byte, write gbWriteFn, read gbReadFn, ctx any) {
	if read == nil {
		read = openBusRead
	}
	if write == nil {
		write = openBusWrite
	}
	for page := int(startPage); page <= int(endPage); page++ {
		b.pages[page] = gbPage{read: read, write: write, ctx: ctx}
	}
}

func (b *GBBus) Read(addr uint16) byte {
	p := &b.pages[addr>>gbPageShift]
	return p.read(p.ctx, addr)
}

func (b *GBBus) Write(addr uint16, value byte) {
	p := &b.pages[addr>>gbPageShift]
	p.write(p.ctx, addr, value)
}

func openBusRead(any, uint16) byte {
	return 0xFF
}

func openBusWrite(any, uint16, byte) {}

// gbRAM is a flat read/write region based at a fixed address.
type gbRAM struct {
	base uint16
	data []byte
}

func newGBRAM(base uint16, size int) *gbRAM {
	return &gbRAM{base: base, data: make([]byte, size)}
}

func (r *gbRAM) Reset() {
	clear(r.data)
}

func gbRAMRead(ctx any, addr uint16) byte {
	r := ctx.(*gbRAM)
	return r.data[int(addr-r.base)%len(r.data)]
}

func gbRAMWrite(ctx any, addr uint16, value byte) {
	r := ctx.(*gbRAM)
	r.data[int(addr-r.base)%len(r.data)] = value
}
