package ppu

import "github.com/yoshiomiyamaegones/pkg/logger"

// Step advances the PPU by exactly one dot. The caller (the console
// orchestrator) invokes this three times per CPU cycle.
func (p *PPU) Step() {
	renderScanline := p.Scanline < 240 || p.Scanline == 261

	if renderScanline {
		p.stepRenderScanline()
	}

	p.advanceDot()
}

func (p *PPU) advanceDot() {
	// Pre-render scanline skips the last dot of an odd frame, but only
	// while rendering is enabled.
	if p.Scanline == 261 && p.Cycle == 339 && p.Frame%2 == 1 && p.renderingEnabled() {
		p.Cycle = 340
	}

	p.Cycle++
	if p.Cycle > 340 {
		p.Cycle = 0
		p.Scanline++
		if p.Scanline > 261 {
			p.Scanline = 0
			p.Frame++
			p.FrameComplete = true
			logger.LogPPU("frame %d complete", p.Frame)
		}

		switch p.Scanline {
		case 241:
			p.PPUSTATUS |= PPUSTATUSVBlank
			if p.PPUCTRL&PPUCTRLNMI != 0 {
				p.NMIRequested = true
			}
		case 261:
			p.PPUSTATUS &^= PPUSTATUSVBlank | PPUSTATUSSprite0 | PPUSTATUSOverflow
		}
	}
}

// stepRenderScanline executes the background fetch / sprite evaluation
// pipeline shared by the 240 visible scanlines and the pre-render line.
func (p *PPU) stepRenderScanline() {
	enabled := p.renderingEnabled()

	switch {
	case p.Cycle == 0:
		if enabled && p.Cartridge != nil {
			p.Cartridge.AccessPPU(p.bgFetchAddress(), enabled)
		}

	case p.Cycle >= 1 && p.Cycle <= 256:
		if p.Scanline < 240 {
			p.emitPixel(p.Cycle - 1)
		}
		p.shiftRegisters()
		p.tickSprites()
		p.backgroundFetchCycle()
		if p.Cycle == 256 && enabled {
			p.incrementFineY()
		}

	case p.Cycle == 257:
		if enabled {
			p.copyHorizontalScroll()
		}
		p.evaluateSprites()

	case p.Cycle >= 258 && p.Cycle <= 320:
		p.spriteFetchCycle()

	case p.Cycle >= 321 && p.Cycle <= 336:
		p.shiftRegisters()
		p.backgroundFetchCycle()

	case p.Cycle == 337 || p.Cycle == 339:
		if enabled && p.Cartridge != nil {
			p.Cartridge.AccessPPU(p.bgFetchAddress(), enabled)
		}
	}

	if p.Scanline == 261 && p.Cycle >= 280 && p.Cycle <= 304 && enabled {
		p.copyVerticalScroll()
	}
}

// bgFetchAddress computes the nametable address of the tile the current
// dot's fetch would address, used for the dummy dot-0/337/339 bus
// accesses that mappers like MMC3 can observe.
func (p *PPU) bgFetchAddress() uint16 {
	return 0x2000 | (p.v & 0x0FFF)
}

// backgroundFetchCycle implements the 8-dot background fetch pattern:
// nametable byte, attribute byte, pattern table low byte, pattern table
// high byte, each held for 2 dots and latched on the second, with the
// shift registers reloaded from the latches every 8th dot.
func (p *PPU) backgroundFetchCycle() {
	if !p.renderingEnabled() {
		return
	}

	switch (p.Cycle - 1) % 8 {
	case 1:
		p.ntByte = p.readVRAM(p.bgFetchAddress())
	case 3:
		attrAddr := 0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07)
		raw := p.readVRAM(attrAddr)
		shift := ((p.v >> 4) & 4) | (p.v & 2)
		quadrant := (raw >> shift) & 0x03
		p.atByte = quadrant
	case 5:
		table := uint16(0)
		if p.PPUCTRL&PPUCTRLBGTable != 0 {
			table = 0x1000
		}
		fineY := (p.v >> 12) & 0x7
		addr := table + uint16(p.ntByte)*16 + fineY
		if p.Cartridge != nil {
			p.Cartridge.AccessPPU(addr, p.renderingEnabled())
		}
		p.bgLowByte = p.readVRAM(addr)
	case 7:
		table := uint16(0)
		if p.PPUCTRL&PPUCTRLBGTable != 0 {
			table = 0x1000
		}
		fineY := (p.v >> 12) & 0x7
		addr := table + uint16(p.ntByte)*16 + fineY + 8
		if p.Cartridge != nil {
			p.Cartridge.AccessPPU(addr, p.renderingEnabled())
		}
		p.bgHighByte = p.readVRAM(addr)
		p.incrementCoarseX()
		p.reloadShiftRegisters()
	}
}

func (p *PPU) reloadShiftRegisters() {
	p.bgShiftLow = (p.bgShiftLow &^ 0x00FF) | uint16(p.bgLowByte)
	p.bgShiftHigh = (p.bgShiftHigh &^ 0x00FF) | uint16(p.bgHighByte)
	p.atLatchLow = p.atByte & 0x1
	p.atLatchHigh = (p.atByte >> 1) & 0x1
}

func (p *PPU) shiftRegisters() {
	if !p.renderingEnabled() {
		return
	}
	p.bgShiftLow <<= 1
	p.bgShiftHigh <<= 1
	p.atShiftLow = (p.atShiftLow << 1) | p.atLatchLow
	p.atShiftHigh = (p.atShiftHigh << 1) | p.atLatchHigh
}

func (p *PPU) incrementCoarseX() {
	if p.v&0x001F == 31 {
		p.v &^= 0x001F
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incrementFineY() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}
	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		y = 0
	default:
		y++
	}
	p.v = (p.v &^ 0x03E0) | (y << 5)
}

func (p *PPU) copyHorizontalScroll() {
	p.v = (p.v &^ 0x041F) | (p.t & 0x041F)
}

func (p *PPU) copyVerticalScroll() {
	p.v = (p.v &^ 0x7BE0) | (p.t & 0x7BE0)
}

// emitPixel resolves and writes the pixel for screen column x of the
// current visible scanline.
func (p *PPU) emitPixel(x int) {
	bgEnabled := p.PPUMASK&PPUMASKShowBG != 0
	spritesEnabled := p.PPUMASK&PPUMASKShowSprites != 0

	bgIndex, bgPalette := uint8(0), uint8(0)
	if bgEnabled && !(x < 8 && p.PPUMASK&PPUMASKShowBGLeft == 0) {
		bit := uint(15 - p.x)
		lo := uint8((p.bgShiftLow >> bit) & 1)
		hi := uint8((p.bgShiftHigh >> bit) & 1)
		bgIndex = lo | (hi << 1)

		abit := uint(7 - p.x)
		alo := (p.atShiftLow >> abit) & 1
		ahi := (p.atShiftHigh >> abit) & 1
		bgPalette = alo | (ahi << 1)
	}
	if bgIndex == 0 {
		bgPalette = 0
	}

	spriteIndex, spritePalette, spritePriority, spriteZero := uint8(0), uint8(0), uint8(0), false
	if spritesEnabled && !(x < 8 && p.PPUMASK&PPUMASKShowSpriteLeft == 0) {
		for i := 0; i < p.secondaryN && i < 8; i++ {
			s := &p.sprites[i]
			if !s.rendering {
				continue
			}
			pixIndex := ((s.patternHigh>>7)&1)<<1 | ((s.patternLow >> 7) & 1)
			if pixIndex == 0 {
				continue
			}
			spriteIndex = pixIndex
			spritePalette = (s.attributes & 0x03) + 4
			spritePriority = (s.attributes >> 5) & 1
			spriteZero = s.isSpriteZero
			break
		}
	}

	if spriteZero && bgIndex != 0 && spriteIndex != 0 && x >= 1 && x != 255 {
		p.PPUSTATUS |= PPUSTATUSSprite0
	}

	var colorIndex uint8
	switch {
	case spriteIndex != 0 && (bgIndex == 0 || spritePriority == 0):
		colorIndex = p.readPaletteRAM(spritePalette<<2 | spriteIndex)
	case bgIndex != 0:
		colorIndex = p.readPaletteRAM(bgPalette<<2 | bgIndex)
	default:
		colorIndex = p.readPaletteRAM(0)
	}

	emphasis := (p.PPUMASK & PPUMASKEmphasisMask) >> 5
	token := uint16(colorIndex&0x3F) | uint16(emphasis)<<6
	p.FrameBuffer[p.Scanline*256+x] = token
}

// evaluateSprites populates secondary OAM for the scanline that follows
// the current one. Spec permits performing the full 64-sprite scan in
// one shot at dot 257 rather than one comparison per dot; the
// bus-visible per-dot sprite pattern fetches still happen individually
// during dots 258-320 so mapper IRQ-timing logic that snoops those
// pattern-table reads (MMC3's A12 filter) still observes real timing.
func (p *PPU) evaluateSprites() {
	p.secondaryN = 0
	p.spriteZeroOnScanline = false

	nextScanline := p.Scanline + 1
	if nextScanline > 261 {
		nextScanline = 0
	}
	if nextScanline >= 240 {
		return
	}

	spriteHeight := 8
	if p.PPUCTRL&PPUCTRLSpriteSize != 0 {
		spriteHeight = 16
	}

	for i := 0; i < 64 && p.secondaryN < 8; i++ {
		y := int(p.OAM[i*4])
		if nextScanline < y || nextScanline >= y+spriteHeight {
			continue
		}
		base := p.secondaryN * 4
		copy(p.secondaryOAM[base:base+4], p.OAM[i*4:i*4+4])
		if i == 0 {
			p.spriteZeroOnScanline = true
		}
		p.sprites[p.secondaryN].isSpriteZero = (i == 0)
		p.sprites[p.secondaryN].active = true
		p.secondaryN++
	}

	// Hardware continues scanning for overflow purposes after the
	// eighth sprite is found; approximate that with a simple count.
	if p.secondaryN == 8 {
		for i := p.secondaryN; i < 64; i++ {
			y := int(p.OAM[i*4])
			if nextScanline >= y && nextScanline < y+spriteHeight {
				p.PPUSTATUS |= PPUSTATUSOverflow
				break
			}
		}
	}

	for i := p.secondaryN; i < 8; i++ {
		p.sprites[i].active = false
		p.sprites[i].rendering = false
	}
}

// spriteFetchCycle performs the per-dot sprite pattern fetch for dots
// 258-320: two throwaway nametable reads followed by the low and high
// pattern bytes for the slot's sprite, loaded with vertical/horizontal
// flip already applied.
func (p *PPU) spriteFetchCycle() {
	slot := (p.Cycle - 258) / 8
	sub := (p.Cycle - 258) % 8
	if slot >= 8 {
		return
	}
	s := &p.sprites[slot]

	switch sub {
	case 0, 2:
		if p.renderingEnabled() && p.Cartridge != nil {
			p.Cartridge.AccessPPU(p.bgFetchAddress(), true)
		}
	case 4, 6:
		if !s.active {
			return
		}
		base := slot * 4
		spriteY := p.secondaryOAM[base]
		tile := p.secondaryOAM[base+1]
		attr := p.secondaryOAM[base+2]
		x := p.secondaryOAM[base+3]

		nextScanline := p.Scanline + 1
		if nextScanline > 261 {
			nextScanline = 0
		}
		yOffset := nextScanline - int(spriteY)

		spriteHeight := 8
		if p.PPUCTRL&PPUCTRLSpriteSize != 0 {
			spriteHeight = 16
		}
		if attr&0x80 != 0 { // vertical flip
			yOffset = spriteHeight - 1 - yOffset
		}

		var patternAddr uint16
		if spriteHeight == 16 {
			table := uint16(tile&1) * 0x1000
			tileIndex := uint16(tile &^ 1)
			if yOffset >= 8 {
				tileIndex++
				yOffset -= 8
			}
			patternAddr = table + tileIndex*16 + uint16(yOffset)
		} else {
			table := uint16(0)
			if p.PPUCTRL&PPUCTRLSpriteTable != 0 {
				table = 0x1000
			}
			patternAddr = table + uint16(tile)*16 + uint16(yOffset)
		}

		if sub == 4 {
			if p.renderingEnabled() && p.Cartridge != nil {
				p.Cartridge.AccessPPU(patternAddr, true)
			}
			s.patternLow = p.readVRAM(patternAddr)
		} else {
			if p.renderingEnabled() && p.Cartridge != nil {
				p.Cartridge.AccessPPU(patternAddr+8, true)
			}
			s.patternHigh = p.readVRAM(patternAddr + 8)
			if attr&0x40 != 0 { // horizontal flip: reverse bits so the MSB-first shift emits the mirrored column order
				s.patternLow = reverseBits(s.patternLow)
				s.patternHigh = reverseBits(s.patternHigh)
			}
			s.attributes = attr
			s.xCounter = x
			s.rendering = false
		}
	}
}

func reverseBits(b uint8) uint8 {
	var r uint8
	for i := 0; i < 8; i++ {
		r <<= 1
		r |= b & 1
		b >>= 1
	}
	return r
}

// tickSprites advances each sprite's X counter / shift register; called
// once per visible dot after that dot's pixel is emitted (shiftRegisters
// does the same for the background).
func (p *PPU) tickSprites() {
	for i := 0; i < 8; i++ {
		s := &p.sprites[i]
		if !s.active {
			continue
		}
		if s.xCounter > 0 {
			s.xCounter--
			if s.xCounter == 0 {
				s.rendering = true
			}
			continue
		}
		if s.rendering {
			s.patternLow <<= 1
			s.patternHigh <<= 1
		}
	}
}
