package ppu

// NES master palette - 64 colors total, each an RGB triple. Grounded on
// the teacher's own table (pkg/ppu/palette.go in the source repo), which
// is the standard NTSC palette used throughout the NES homebrew/emulator
// community.
var masterPalette = [64][3]uint8{
	{0x80, 0x80, 0x80}, {0x00, 0x3D, 0xA6}, {0x00, 0x12, 0xB0}, {0x44, 0x00, 0x96},
	{0xA1, 0x00, 0x5E}, {0xC7, 0x00, 0x28}, {0xBA, 0x06, 0x00}, {0x8C, 0x17, 0x00},
	{0x5C, 0x2F, 0x00}, {0x10, 0x45, 0x00}, {0x05, 0x4A, 0x00}, {0x00, 0x47, 0x2E},
	{0x00, 0x41, 0x66}, {0x00, 0x00, 0x00}, {0x05, 0x05, 0x05}, {0x05, 0x05, 0x05},

	{0xC7, 0xC7, 0xC7}, {0x00, 0x77, 0xFF}, {0x21, 0x55, 0xFF}, {0x82, 0x37, 0xFA},
	{0xEB, 0x2F, 0xB5}, {0xFF, 0x29, 0x50}, {0xFF, 0x22, 0x00}, {0xD6, 0x32, 0x00},
	{0xC4, 0x62, 0x00}, {0x35, 0x80, 0x00}, {0x05, 0x8F, 0x00}, {0x00, 0x8A, 0x55},
	{0x00, 0x99, 0xCC}, {0x21, 0x21, 0x21}, {0x09, 0x09, 0x09}, {0x09, 0x09, 0x09},

	{0xFF, 0xFF, 0xFF}, {0x0F, 0xD7, 0xFF}, {0x69, 0xA2, 0xFF}, {0xD4, 0x80, 0xFF},
	{0xFF, 0x45, 0xF3}, {0xFF, 0x61, 0x8B}, {0xFF, 0x88, 0x33}, {0xFF, 0x9C, 0x12},
	{0xFA, 0xBC, 0x20}, {0x9F, 0xE3, 0x0E}, {0x2B, 0xF0, 0x35}, {0x0C, 0xF0, 0xA4},
	{0x05, 0xFB, 0xFF}, {0x5E, 0x5E, 0x5E}, {0x0D, 0x0D, 0x0D}, {0x0D, 0x0D, 0x0D},

	{0xFF, 0xFF, 0xFF}, {0xA6, 0xFC, 0xFF}, {0xB3, 0xEC, 0xFF}, {0xDA, 0xAB, 0xEB},
	{0xFF, 0xA8, 0xF9}, {0xFF, 0xAB, 0xB3}, {0xFF, 0xD2, 0xB0}, {0xFF, 0xEF, 0xA6},
	{0xFF, 0xF7, 0x9C}, {0xD7, 0xFF, 0xB3}, {0xC6, 0xFF, 0xDE}, {0xC4, 0xFF, 0xF6},
	{0xC4, 0xF0, 0xFF}, {0xCC, 0xCC, 0xCC}, {0x3C, 0x3C, 0x3C}, {0x3C, 0x3C, 0x3C},
}

// paletteBackdropMirror maps a palette RAM index to the entry it mirrors,
// per the hardware invariant in spec §3: $3F10/14/18/1C mirror
// $3F00/04/08/0C.
func paletteBackdropMirror(addr uint8) uint8 {
	switch addr {
	case 0x10, 0x14, 0x18, 0x1C:
		return addr - 0x10
	default:
		return addr
	}
}

// readPaletteRAM reads a palette entry honoring the mirroring invariant
// and, when mask bit 0 (greyscale) is set, masking to the grey column
// (AND 0x30) per spec §3.
func (p *PPU) readPaletteRAM(addr uint8) uint8 {
	addr = paletteBackdropMirror(addr & 0x1F)
	value := p.paletteRAM[addr]
	if p.PPUMASK&PPUMASKGreyscale != 0 {
		value &= 0x30
	}
	return value
}

func (p *PPU) writePaletteRAM(addr uint8, value uint8) {
	addr = paletteBackdropMirror(addr & 0x1F)
	p.paletteRAM[addr] = value & 0x3F
}

// pixelRGB converts a 9-bit pixel token (bits 0-5 palette entry, bits
// 6-8 emphasis/greyscale carried from PPUMASK) into an RGB triple for
// host display. This conversion is host-facing, not part of the core's
// observable state.
func pixelRGB(pixel uint16) (uint8, uint8, uint8) {
	colorIndex := pixel & 0x3F
	emphasis := uint8((pixel >> 6) & 0x07)

	rgb := masterPalette[colorIndex&0x3F]
	r, g, b := rgb[0], rgb[1], rgb[2]

	if emphasis&0x01 != 0 { // red emphasis: dim green/blue
		g = uint8(float32(g) * 0.75)
		b = uint8(float32(b) * 0.75)
	}
	if emphasis&0x02 != 0 { // green emphasis: dim red/blue
		r = uint8(float32(r) * 0.75)
		b = uint8(float32(b) * 0.75)
	}
	if emphasis&0x04 != 0 { // blue emphasis: dim red/green
		r = uint8(float32(r) * 0.75)
		g = uint8(float32(g) * 0.75)
	}

	return r, g, b
}
