// Package ppu implements the NES Picture Processing Unit: a cycle-accurate
// 341-dot by 262-scanline rendering pipeline driven one dot at a time by
// the console orchestrator, plus the register/VRAM/OAM/palette surface
// the CPU bus exposes at $2000-$2007 (mirrored through $3FFF).
package ppu

import (
	"github.com/yoshiomiyamaegones/pkg/logger"
)

// PPUCTRL ($2000, write-only) bits.
const (
	PPUCTRLNametableMask = 0x03
	PPUCTRLIncrement     = 0x04
	PPUCTRLSpriteTable   = 0x08
	PPUCTRLBGTable       = 0x10
	PPUCTRLSpriteSize    = 0x20
	PPUCTRLNMI           = 0x80
)

// PPUMASK ($2001, write-only) bits.
const (
	PPUMASKGreyscale      = 0x01
	PPUMASKShowBGLeft     = 0x02
	PPUMASKShowSpriteLeft = 0x04
	PPUMASKShowBG         = 0x08
	PPUMASKShowSprites    = 0x10
	PPUMASKEmphasisMask   = 0xE0
)

// PPUSTATUS ($2002, read-only) bits.
const (
	PPUSTATUSOverflow = 0x20
	PPUSTATUSSprite0  = 0x40
	PPUSTATUSVBlank   = 0x80
)

// Mirroring is the nametable mirroring mode a mapper selects.
type Mirroring int

const (
	MirrorHorizontal Mirroring = iota
	MirrorVertical
	MirrorSingleScreenLower
	MirrorSingleScreenUpper
	MirrorFourScreen
)

// Cartridge is the subset of the Mapper capability the PPU needs: CHR
// access, pattern-table bus snooping (for mappers like MMC3 that watch
// A12 to time scanline IRQs), and the current mirroring mode.
type Cartridge interface {
	ReadPPU(addr uint16) uint8
	WritePPU(addr uint16, value uint8)
	AccessPPU(addr uint16, renderingEnabled bool)
	Mirroring() Mirroring
}

// spriteLatch holds one of the 8 secondary-OAM sprite slots once fetched
// and ready to shift out pixels during the next scanline.
type spriteLatch struct {
	patternLow   uint8
	patternHigh  uint8
	attributes   uint8
	xCounter     uint8
	rendering    bool
	isSpriteZero bool
	active       bool // false when this slot held no sprite this evaluation
}

// PPU is the NES Picture Processing Unit.
type PPU struct {
	PPUCTRL   uint8
	PPUMASK   uint8
	PPUSTATUS uint8
	OAMADDR   uint8

	openBus uint8 // PPU-bus open bus (distinct from the CPU bus's)

	// Loopy scroll registers.
	v, t uint16
	x    uint8 // fine X, 0-7
	w    uint8 // write toggle, 0 or 1

	readBuffer uint8 // buffered $2007 read-ahead value

	// Background fetch pipeline: latches loaded every 8 dots, shifted
	// into the 16-bit pattern / 8-bit attribute shift registers every
	// dot during rendering.
	ntByte      uint8
	atByte      uint8
	bgLowByte   uint8
	bgHighByte  uint8
	bgShiftLow  uint16
	bgShiftHigh uint16
	atShiftLow  uint8
	atShiftHigh uint8
	atLatchLow  uint8
	atLatchHigh uint8

	OAM                  [256]uint8
	secondaryOAM         [32]uint8 // raw copy of up to 8 sprites found for next scanline
	secondaryN           int       // count of sprites found, 0-8
	sprites              [8]spriteLatch
	spriteZeroOnScanline bool

	// 4KB of internal nametable storage. For horizontal/vertical/single
	// screen mirroring, only the first 2KB (two 1KB banks) are
	// addressed; four-screen mirroring uses the full 4KB directly.
	VRAM [0x1000]uint8

	paletteRAM [32]uint8

	// FrameBuffer holds one 9-bit pixel token per pixel: bits 0-5 are
	// the resolved palette entry, bits 6-8 carry the emphasis/greyscale
	// bits active in PPUMASK at the moment the pixel was emitted.
	FrameBuffer [256 * 240]uint16

	Scanline int // 0-239 visible, 240 post-render, 241-260 vblank, 261 pre-render
	Cycle    int // 0-340
	Frame    uint64

	FrameComplete bool
	NMIRequested  bool

	Cartridge Cartridge
}

// New creates a PPU. The memory argument is accepted for API symmetry
// with the rest of the console's constructors; the PPU does not address
// CPU memory directly.
func New(mem interface{}) *PPU {
	return &PPU{}
}

// SetCartridge attaches the cartridge (mapper capability) the PPU reads
// CHR data and nametable mirroring from.
func (p *PPU) SetCartridge(cart Cartridge) {
	p.Cartridge = cart
}

// Reset restores power-up state. The frame buffer is intentionally left
// as-is; callers that want a blank screen clear it explicitly.
func (p *PPU) Reset() {
	p.PPUCTRL = 0
	p.PPUMASK = 0
	p.PPUSTATUS = 0
	p.OAMADDR = 0
	p.v, p.t = 0, 0
	p.x, p.w = 0, 0
	p.readBuffer = 0
	p.Scanline = 0
	p.Cycle = 0
	p.Frame = 0
	p.FrameComplete = false
	p.NMIRequested = false
	p.bgShiftLow, p.bgShiftHigh = 0, 0
	p.atShiftLow, p.atShiftHigh = 0, 0
	p.secondaryN = 0
	p.spriteZeroOnScanline = false
}

func (p *PPU) renderingEnabled() bool {
	return p.PPUMASK&(PPUMASKShowBG|PPUMASKShowSprites) != 0
}

// ReadRegister services a CPU read of $2000-$2007 (already mirrored down
// by the caller).
func (p *PPU) ReadRegister(addr uint16) uint8 {
	var value uint8

	switch addr & 0x7 {
	case 2: // PPUSTATUS
		value = (p.PPUSTATUS & 0xE0) | (p.openBus & 0x1F)
		p.PPUSTATUS &^= PPUSTATUSVBlank
		p.w = 0

	case 4: // OAMDATA
		value = p.OAM[p.OAMADDR]

	case 7: // PPUDATA
		addr := p.v & 0x3FFF
		if addr >= 0x3F00 {
			value = p.readPaletteRAM(uint8(addr & 0x1F))
			// Palette reads are immediate but still refill the buffer
			// with the underlying nametable byte, per hardware.
			p.readBuffer = p.readVRAM(addr - 0x1000)
		} else {
			value = p.readBuffer
			p.readBuffer = p.readVRAM(addr)
		}
		p.incrementVRAMAddress()

	default:
		value = p.openBus
	}

	p.openBus = value
	return value
}

// WriteRegister services a CPU write of $2000-$2007.
func (p *PPU) WriteRegister(addr uint16, value uint8) {
	p.openBus = value

	switch addr & 0x7 {
	case 0: // PPUCTRL
		p.PPUCTRL = value
		p.t = (p.t &^ 0x0C00) | (uint16(value&0x03) << 10)

	case 1: // PPUMASK
		p.PPUMASK = value

	case 3: // OAMADDR
		p.OAMADDR = value

	case 4: // OAMDATA
		p.OAM[p.OAMADDR] = value
		p.OAMADDR++

	case 5: // PPUSCROLL
		if p.w == 0 {
			p.t = (p.t &^ 0x001F) | uint16(value>>3)
			p.x = value & 0x07
			p.w = 1
		} else {
			p.t = (p.t &^ 0x73E0) | (uint16(value&0x07) << 12) | (uint16(value&0xF8) << 2)
			p.w = 0
		}

	case 6: // PPUADDR
		if p.w == 0 {
			p.t = (p.t &^ 0x7F00) | (uint16(value&0x3F) << 8)
			p.w = 1
		} else {
			p.t = (p.t &^ 0x00FF) | uint16(value)
			p.v = p.t
			p.w = 0
		}

	case 7: // PPUDATA
		addr := p.v & 0x3FFF
		if addr >= 0x3F00 {
			p.writePaletteRAM(uint8(addr&0x1F), value)
		} else {
			p.writeVRAM(addr, value)
		}
		p.incrementVRAMAddress()
	}

	logger.LogPPU("register write $%04X = $%02X (v=$%04X t=$%04X)", addr, value, p.v, p.t)
}

func (p *PPU) incrementVRAMAddress() {
	if p.PPUCTRL&PPUCTRLIncrement != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x7FFF
}

// readVRAM reads the PPU address space: $0000-$1FFF pattern tables (via
// the cartridge), $2000-$2FFF nametables (internal VRAM, mirrored by the
// cartridge's mirroring mode), $3000-$3EFF mirrors $2000-$2EFF.
func (p *PPU) readVRAM(addr uint16) uint8 {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		if p.Cartridge != nil {
			return p.Cartridge.ReadPPU(addr)
		}
		return 0
	case addr < 0x3F00:
		return p.VRAM[p.mirrorNametableAddress(addr&0x2FFF)]
	default:
		return p.readPaletteRAM(uint8(addr & 0x1F))
	}
}

func (p *PPU) writeVRAM(addr uint16, value uint8) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		if p.Cartridge != nil {
			p.Cartridge.WritePPU(addr, value)
		}
	case addr < 0x3F00:
		p.VRAM[p.mirrorNametableAddress(addr&0x2FFF)] = value
	default:
		p.writePaletteRAM(uint8(addr&0x1F), value)
	}
}

// mirrorNametableAddress maps a $2000-$2FFF nametable address into the
// physical VRAM storage according to the cartridge's mirroring mode.
func (p *PPU) mirrorNametableAddress(addr uint16) uint16 {
	offset := addr & 0x0FFF // 0x000-0xFFF, 4 logical 1KB nametables
	table := offset / 0x400
	within := offset % 0x400

	mode := MirrorHorizontal
	if p.Cartridge != nil {
		mode = p.Cartridge.Mirroring()
	}

	switch mode {
	case MirrorFourScreen:
		return offset
	case MirrorVertical:
		// tables 0,2 -> bank A; 1,3 -> bank B
		if table%2 == 0 {
			return within
		}
		return 0x400 + within
	case MirrorSingleScreenLower:
		return within
	case MirrorSingleScreenUpper:
		return 0x400 + within
	default: // MirrorHorizontal
		// tables 0,1 -> bank A; 2,3 -> bank B
		if table < 2 {
			return within
		}
		return 0x400 + within
	}
}

// GetFramebuffer converts the 9-bit pixel-token framebuffer into RGBA
// bytes for a host display surface.
func (p *PPU) GetFramebuffer() []byte {
	out := make([]byte, 256*240*4)
	for i, pixel := range p.FrameBuffer {
		r, g, b := pixelRGB(pixel)
		out[i*4] = r
		out[i*4+1] = g
		out[i*4+2] = b
		out[i*4+3] = 0xFF
	}
	return out
}

// IsMapperIRQPending proxies through to the cartridge so callers that
// only hold a *PPU can still check mapper IRQ state derived from
// pattern-table bus activity (e.g. MMC3's A12 filter).
func (p *PPU) IsMapperIRQPending() bool {
	if m, ok := p.Cartridge.(interface{ IRQAsserted() bool }); ok {
		return m.IRQAsserted()
	}
	return false
}

// ClearMapperIRQ acknowledges a pending mapper IRQ.
func (p *PPU) ClearMapperIRQ() {
	if m, ok := p.Cartridge.(interface{ ClearIRQ() }); ok {
		m.ClearIRQ()
	}
}
