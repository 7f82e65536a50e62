// Package mapper implements the NES cartridge Mapper capability: the
// boundary the console orchestrator crosses to reach PRG/CHR storage,
// battery-backed save RAM, and mapper-specific IRQ generation.
package mapper

import (
	"fmt"

	"github.com/yoshiomiyamaegones/pkg/ppu"
)

// Mapper is the capability every cartridge mapper exposes to the rest of
// the console. CPU reads return (value, ok) — ok is false when the address
// isn't decoded by this mapper at all, letting the caller fall back to
// open-bus behavior instead of a fabricated zero.
type Mapper interface {
	ReadCPU(addr uint16) (uint8, bool)
	WriteCPU(addr uint16, value uint8)

	ReadPPU(addr uint16) uint8
	WritePPU(addr uint16, value uint8)

	// AccessPPU notifies the mapper of a PPU bus access to a pattern
	// table address without returning data, for mappers (MMC3) that
	// derive IRQ timing from watching the PPU address bus.
	AccessPPU(addr uint16, renderingEnabled bool)

	// ClockCPU is called once per CPU cycle for mappers whose IRQ
	// counters are driven directly off the CPU clock rather than PPU
	// bus snooping. None of the supported mappers need this; it is a
	// no-op on all of them.
	ClockCPU()

	IRQAsserted() bool
	Mirroring() ppu.Mirroring

	SRAM() []uint8
	LoadSRAM(data []uint8)
}

// CartridgeData is the raw ROM/RAM image a mapper banks over, plus the
// mirroring mode declared in the iNES header (used as-is by mappers with
// no dynamic mirroring, and as the power-up default for ones that do).
type CartridgeData struct {
	PRGROM []uint8
	CHRROM []uint8
	PRGRAM []uint8
	CHRRAM []uint8

	Mirroring ppu.Mirroring
}

// NewMapper constructs the mapper for the iNES mapper number recorded in
// a ROM's header.
func NewMapper(mapperNumber uint8, data *CartridgeData) (Mapper, error) {
	switch mapperNumber {
	case 0:
		return NewMapper0(data), nil
	case 1:
		return NewMapper1(data), nil
	case 2:
		return NewMapper2(data), nil
	case 3:
		return NewMapper3(data), nil
	case 4:
		return NewMapper4(data), nil
	default:
		return nil, fmt.Errorf("unsupported mapper: %d", mapperNumber)
	}
}
