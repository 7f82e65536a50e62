package ppu

import "testing"

func TestPaletteBackdropMirror(t *testing.T) {
	cases := []struct {
		addr     uint8
		expected uint8
	}{
		{0x00, 0x00},
		{0x04, 0x04},
		{0x10, 0x00},
		{0x14, 0x04},
		{0x18, 0x08},
		{0x1C, 0x0C},
		{0x05, 0x05},
	}
	for _, c := range cases {
		if got := paletteBackdropMirror(c.addr); got != c.expected {
			t.Errorf("paletteBackdropMirror(%02X) = %02X, want %02X", c.addr, got, c.expected)
		}
	}
}

func TestReadWritePaletteRAM(t *testing.T) {
	p := &PPU{}

	p.writePaletteRAM(0x01, 0xFF)
	if got := p.readPaletteRAM(0x01); got != 0x3F {
		t.Errorf("expected palette value masked to 0x3F, got %02X", got)
	}

	p.writePaletteRAM(0x00, 0x0F)
	if got := p.readPaletteRAM(0x10); got != 0x0F {
		t.Errorf("expected $10 to mirror $00 (0x0F), got %02X", got)
	}
}

func TestPaletteGreyscaleMask(t *testing.T) {
	p := &PPU{}
	p.writePaletteRAM(0x00, 0x2A)

	if got := p.readPaletteRAM(0x00); got != 0x2A {
		t.Errorf("expected unmasked read 0x2A, got %02X", got)
	}

	p.PPUMASK |= PPUMASKGreyscale
	if got := p.readPaletteRAM(0x00); got != 0x2A&0x30 {
		t.Errorf("expected greyscale-masked read %02X, got %02X", 0x2A&0x30, got)
	}
}

func TestPixelRGBEmphasis(t *testing.T) {
	r, g, b := pixelRGB(0x20)
	rr, rg, rb := pixelRGB(0x20 | (0x1 << 6))

	if r != rr {
		t.Errorf("red emphasis should not dim the red channel: got %d vs %d", r, rr)
	}
	if g == rg && b == rb {
		t.Error("red emphasis should dim green and blue channels")
	}
}

func TestMasterPaletteSize(t *testing.T) {
	if len(masterPalette) != 64 {
		t.Fatalf("expected 64 master palette entries, got %d", len(masterPalette))
	}
}
