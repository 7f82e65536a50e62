package mapper

import "github.com/yoshiomiyamaegones/pkg/ppu"

// Mapper0 (NROM) - No mapping
type Mapper0 struct {
	cartridge *CartridgeData
}

// NewMapper0 creates a new Mapper0 instance
func NewMapper0(data *CartridgeData) *Mapper0 {
	return &Mapper0{cartridge: data}
}

// ReadPRG reads from PRG ROM
func (m *Mapper0) ReadPRG(addr uint16) uint8 {
	if addr >= 0x8000 {
		addr -= 0x8000
		if len(m.cartridge.PRGROM) == 16384 {
			// 16KB ROM, mirror at 0xC000
			addr = addr % 16384
		}
		if int(addr) < len(m.cartridge.PRGROM) {
			return m.cartridge.PRGROM[addr]
		}
	} else if addr >= 0x6000 && len(m.cartridge.PRGRAM) > 0 {
		// PRG RAM
		addr -= 0x6000
		if int(addr) < len(m.cartridge.PRGRAM) {
			return m.cartridge.PRGRAM[addr]
		}
	}
	return 0
}

// WritePRG writes to PRG space
func (m *Mapper0) WritePRG(addr uint16, value uint8) {
	if addr >= 0x6000 && addr < 0x8000 && len(m.cartridge.PRGRAM) > 0 {
		// PRG RAM
		addr -= 0x6000
		if int(addr) < len(m.cartridge.PRGRAM) {
			m.cartridge.PRGRAM[addr] = value
		}
	}
	// ROM writes are ignored
}

// ReadCHR reads from CHR ROM/RAM
func (m *Mapper0) ReadCHR(addr uint16) uint8 {
	if len(m.cartridge.CHRROM) > 0 {
		if int(addr) < len(m.cartridge.CHRROM) {
			return m.cartridge.CHRROM[addr]
		} else {
			return 0
		}
	} else if len(m.cartridge.CHRRAM) > 0 {
		if int(addr) < len(m.cartridge.CHRRAM) {
			return m.cartridge.CHRRAM[addr]
		}
	}
	return 0
}

// WriteCHR writes to CHR RAM
func (m *Mapper0) WriteCHR(addr uint16, value uint8) {
	if len(m.cartridge.CHRRAM) > 0 {
		if int(addr) < len(m.cartridge.CHRRAM) {
			m.cartridge.CHRRAM[addr] = value
		}
	}
	// CHR ROM writes are ignored
}

// Step does nothing for Mapper0
func (m *Mapper0) Step() {
	// No special timing for NROM
}

// IsIRQPending returns false for Mapper0 (no IRQ support)
func (m *Mapper0) IsIRQPending() bool {
	return false
}

// ClearIRQ does nothing for Mapper0 (no IRQ support)
func (m *Mapper0) ClearIRQ() {
	// No IRQ to clear
}

// ReadCPU implements the Mapper capability's CPU-facing read: open bus
// below $6000, PRG RAM/ROM at and above it.
func (m *Mapper0) ReadCPU(addr uint16) (uint8, bool) {
	if addr < 0x6000 {
		return 0, false
	}
	return m.ReadPRG(addr), true
}

// WriteCPU implements the Mapper capability's CPU-facing write.
func (m *Mapper0) WriteCPU(addr uint16, value uint8) {
	if addr >= 0x6000 {
		m.WritePRG(addr, value)
	}
}

// ReadPPU implements the Mapper capability's PPU-facing CHR read.
func (m *Mapper0) ReadPPU(addr uint16) uint8 {
	return m.ReadCHR(addr)
}

// WritePPU implements the Mapper capability's PPU-facing CHR write.
func (m *Mapper0) WritePPU(addr uint16, value uint8) {
	m.WriteCHR(addr, value)
}

// AccessPPU is a no-op for NROM: no IRQ logic observes the PPU bus.
func (m *Mapper0) AccessPPU(addr uint16, renderingEnabled bool) {}

// ClockCPU is a no-op for NROM: no CPU-clocked IRQ counter exists.
func (m *Mapper0) ClockCPU() {}

// IRQAsserted reports whether this mapper is requesting an interrupt.
func (m *Mapper0) IRQAsserted() bool {
	return m.IsIRQPending()
}

// Mirroring returns the nametable mirroring NROM declares in its header.
func (m *Mapper0) Mirroring() ppu.Mirroring {
	return m.cartridge.Mirroring
}

// SRAM returns the battery-backed save RAM contents, if any.
func (m *Mapper0) SRAM() []uint8 {
	return m.cartridge.PRGRAM
}

// LoadSRAM restores previously saved battery-backed RAM contents.
func (m *Mapper0) LoadSRAM(data []uint8) {
	copy(m.cartridge.PRGRAM, data)
}