package memory

import (
	"github.com/yoshiomiyamaegones/pkg/logger"
)

// Memory represents the NES CPU memory map: 2KB internal RAM mirrored
// across $0000-$1FFF, PPU/APU register windows, and everything at
// $4020 and above routed through the cartridge's Mapper.
type Memory struct {
	// CPU RAM (2KB, mirrored to fill 8KB)
	RAM [2048]uint8

	// CPU open bus: last byte value driven onto the CPU bus by any
	// device, returned for addresses nothing answers.
	OpenBus uint8

	// DMAPending/DMAPage record a write to $4014 for the orchestrator
	// to service with cycle-accurate stalling; Memory itself performs
	// no multi-cycle work.
	DMAPending bool
	DMAPage    uint8

	// PPU interface
	PPU interface {
		ReadRegister(addr uint16) uint8
		WriteRegister(addr uint16, value uint8)
	}

	// APU interface
	APU interface {
		ReadRegister(addr uint16) uint8
		WriteRegister(addr uint16, value uint8)
	}

	// Cartridge interface — the Mapper capability, routed $4020 and up
	// plus $6000-$FFFF.
	Cartridge interface {
		ReadCPU(addr uint16) (uint8, bool)
		WriteCPU(addr uint16, value uint8)
	}

	// Input interface
	Input interface {
		Read() uint8
		Write(value uint8)
	}

	Input2 interface {
		Read() uint8
		Write(value uint8)
	}
}

// New creates a new Memory instance
func New() *Memory {
	return &Memory{}
}

// SetCartridge sets the cartridge reference
func (m *Memory) SetCartridge(cart interface {
	ReadCPU(addr uint16) (uint8, bool)
	WriteCPU(addr uint16, value uint8)
}) {
	m.Cartridge = cart
}

// SetPPU sets the PPU reference
func (m *Memory) SetPPU(ppu interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
}) {
	m.PPU = ppu
}

// SetAPU sets the APU reference
func (m *Memory) SetAPU(apu interface {
	ReadRegister(addr uint16) uint8
	WriteRegister(addr uint16, value uint8)
}) {
	m.APU = apu
}

// SetInput sets the primary controller reference
func (m *Memory) SetInput(input interface {
	Read() uint8
	Write(value uint8)
}) {
	m.Input = input
}

// SetInput2 sets the second controller reference
func (m *Memory) SetInput2(input interface {
	Read() uint8
	Write(value uint8)
}) {
	m.Input2 = input
}

// Read reads a byte from the given address, dispatching by region.
// Addresses nothing answers return the CPU open-bus value.
func (m *Memory) Read(addr uint16) uint8 {
	var value uint8
	switch {
	case addr < 0x2000:
		// CPU RAM (0x0000-0x1FFF, mirrored every 0x800 bytes)
		value = m.RAM[addr&0x7FF]

	case addr < 0x4000:
		// PPU registers (0x2000-0x3FFF, mirrored every 8 bytes)
		if m.PPU != nil {
			value = m.PPU.ReadRegister(0x2000 + (addr & 0x7))
		} else {
			value = m.OpenBus
		}

	case addr == 0x4016:
		if m.Input != nil {
			value = (m.OpenBus & 0xE0) | (m.Input.Read() & 0x1F)
		} else {
			value = m.OpenBus
		}

	case addr == 0x4017:
		if m.Input2 != nil {
			value = (m.OpenBus & 0xE0) | (m.Input2.Read() & 0x1F)
		} else if m.APU != nil {
			value = m.APU.ReadRegister(addr)
		} else {
			value = m.OpenBus
		}

	case addr < 0x4018:
		if m.APU != nil {
			value = m.APU.ReadRegister(addr)
		} else {
			value = m.OpenBus
		}

	default:
		// 0x4018 and up: cartridge / mapper space, including PRG ROM/RAM.
		if m.Cartridge != nil {
			if v, ok := m.Cartridge.ReadCPU(addr); ok {
				value = v
			} else {
				value = m.OpenBus
			}
		} else {
			value = m.OpenBus
		}
	}

	m.OpenBus = value
	return value
}

// Write writes a byte to the given address.
func (m *Memory) Write(addr uint16, value uint8) {
	m.OpenBus = value

	switch {
	case addr < 0x2000:
		m.RAM[addr&0x7FF] = value

	case addr < 0x4000:
		if m.PPU != nil {
			ppuAddr := 0x2000 + (addr & 0x7)
			logger.LogCPU("Memory Write PPU $%04X: value=$%02X", ppuAddr, value)
			m.PPU.WriteRegister(ppuAddr, value)
		}

	case addr == 0x4014:
		m.DMAPending = true
		m.DMAPage = value

	case addr == 0x4016:
		if m.Input != nil {
			m.Input.Write(value)
		}
		if m.Input2 != nil {
			m.Input2.Write(value)
		}

	case addr < 0x4018:
		if m.APU != nil {
			m.APU.WriteRegister(addr, value)
		}

	default:
		if m.Cartridge != nil {
			m.Cartridge.WriteCPU(addr, value)
		}
	}
}

// WriteOAMByte is used by the orchestrator during an OAM DMA transfer to
// push each byte read from CPU memory into PPU OAM via $2004.
func (m *Memory) WriteOAMByte(value uint8) {
	if m.PPU != nil {
		m.PPU.WriteRegister(0x2004, value)
	}
}
