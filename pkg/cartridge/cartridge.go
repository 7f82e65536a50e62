package cartridge

import (
	"fmt"
	"io"

	"github.com/yoshiomiyamaegones/pkg/cartridge/mapper"
	"github.com/yoshiomiyamaegones/pkg/ppu"
)

// Cartridge represents a NES cartridge: the decoded iNES image plus the
// mapper capability that interprets it. It implements both the memory
// bus's Cartridge interface (ReadCPU/WriteCPU) and the PPU's Cartridge
// interface (ReadPPU/WritePPU/AccessPPU/Mirroring).
type Cartridge struct {
	// ROM data
	PRGROM []uint8 // Program ROM
	CHRROM []uint8 // Character ROM

	// RAM data
	PRGRAM []uint8 // Program RAM (SRAM)
	CHRRAM []uint8 // Character RAM

	// Header information
	Header iNESHeader

	// Mapper
	Mapper mapper.Mapper
}

// iNESHeader represents the iNES file header
type iNESHeader struct {
	Magic      [4]uint8 // "NES\x1A"
	PRGROMSize uint8    // Size of PRG ROM in 16KB units
	CHRROMSize uint8    // Size of CHR ROM in 8KB units
	Flags6     uint8    // Mapper, mirroring, battery, trainer
	Flags7     uint8    // Mapper, VS/Playchoice, NES 2.0
	Flags8     uint8    // PRG-RAM size (rarely used)
	Flags9     uint8    // TV system (rarely used)
	Flags10    uint8    // TV system, PRG-RAM presence (unofficial)
	Padding    [5]uint8 // Unused padding (should be zero)
}

// LoadFromReader loads a cartridge from an iNES file
func LoadFromReader(reader io.Reader) (*Cartridge, error) {
	cart := &Cartridge{}

	// Read header
	err := cart.readHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Validate header
	if string(cart.Header.Magic[:]) != "NES\x1A" {
		return nil, fmt.Errorf("invalid iNES magic number")
	}

	// Skip trainer if present
	if cart.Header.Flags6&0x04 != 0 {
		trainer := make([]uint8, 512)
		_, err := io.ReadFull(reader, trainer)
		if err != nil {
			return nil, fmt.Errorf("failed to read trainer: %w", err)
		}
	}

	// Read PRG ROM
	prgSize := int(cart.Header.PRGROMSize) * 16384
	cart.PRGROM = make([]uint8, prgSize)
	_, err = io.ReadFull(reader, cart.PRGROM)
	if err != nil {
		return nil, fmt.Errorf("failed to read PRG ROM: %w", err)
	}

	// Read CHR ROM
	chrSize := int(cart.Header.CHRROMSize) * 8192
	if chrSize > 0 {
		cart.CHRROM = make([]uint8, chrSize)
		_, err = io.ReadFull(reader, cart.CHRROM)
		if err != nil {
			return nil, fmt.Errorf("failed to read CHR ROM: %w", err)
		}
	} else {
		// CHR RAM - determine size based on mapper
		mapperNumber := (cart.Header.Flags6 >> 4) | (cart.Header.Flags7 & 0xF0)
		chrRAMSize := 8192 // Default 8KB

		// Mapper 4 (MMC3) games often use 32KB CHR RAM
		if mapperNumber == 4 {
			chrRAMSize = 32768 // 32KB for MMC3 games
		}

		cart.CHRRAM = make([]uint8, chrRAMSize)
	}

	// Initialize PRG RAM if battery backed
	if cart.Header.Flags6&0x02 != 0 {
		// Final Fantasy II requires 32KB PRG RAM, not 8KB
		cart.PRGRAM = make([]uint8, 32768)
	}

	// Determine mirroring from the header; mappers with dynamic
	// mirroring (MMC1, MMC3) override this via their own Mirroring().
	var mirroring ppu.Mirroring
	switch {
	case cart.Header.Flags6&0x08 != 0:
		mirroring = ppu.MirrorFourScreen
	case cart.Header.Flags6&0x01 != 0:
		mirroring = ppu.MirrorVertical
	default:
		mirroring = ppu.MirrorHorizontal
	}

	// Create mapper
	mapperNumber := (cart.Header.Flags6 >> 4) | (cart.Header.Flags7 & 0xF0)

	mapperData := &mapper.CartridgeData{
		PRGROM:    cart.PRGROM,
		CHRROM:    cart.CHRROM,
		PRGRAM:    cart.PRGRAM,
		CHRRAM:    cart.CHRRAM,
		Mirroring: mirroring,
	}

	cart.Mapper, err = mapper.NewMapper(mapperNumber, mapperData)
	if err != nil {
		return nil, fmt.Errorf("failed to create mapper: %w", err)
	}

	return cart, nil
}

// readHeader reads the iNES header
func (c *Cartridge) readHeader(reader io.Reader) error {
	headerBytes := make([]uint8, 16)
	_, err := io.ReadFull(reader, headerBytes)
	if err != nil {
		return err
	}

	copy(c.Header.Magic[:], headerBytes[0:4])
	c.Header.PRGROMSize = headerBytes[4]
	c.Header.CHRROMSize = headerBytes[5]
	c.Header.Flags6 = headerBytes[6]
	c.Header.Flags7 = headerBytes[7]
	c.Header.Flags8 = headerBytes[8]
	c.Header.Flags9 = headerBytes[9]
	c.Header.Flags10 = headerBytes[10]
	copy(c.Header.Padding[:], headerBytes[11:16])

	return nil
}

// ReadCPU implements the memory bus's Cartridge interface.
func (c *Cartridge) ReadCPU(addr uint16) (uint8, bool) {
	if c.Mapper != nil {
		return c.Mapper.ReadCPU(addr)
	}
	return 0, false
}

// WriteCPU implements the memory bus's Cartridge interface.
func (c *Cartridge) WriteCPU(addr uint16, value uint8) {
	if c.Mapper != nil {
		c.Mapper.WriteCPU(addr, value)
	}
}

// ReadPPU implements the PPU's Cartridge interface: CHR ROM/RAM reads.
func (c *Cartridge) ReadPPU(addr uint16) uint8 {
	if c.Mapper != nil {
		return c.Mapper.ReadPPU(addr)
	}
	return 0
}

// WritePPU implements the PPU's Cartridge interface: CHR RAM writes.
func (c *Cartridge) WritePPU(addr uint16, value uint8) {
	if c.Mapper != nil {
		c.Mapper.WritePPU(addr, value)
	}
}

// AccessPPU feeds every PPU bus access to the mapper, for mappers (MMC3)
// whose IRQ timing depends on snooping the PPU address bus.
func (c *Cartridge) AccessPPU(addr uint16, renderingEnabled bool) {
	if c.Mapper != nil {
		c.Mapper.AccessPPU(addr, renderingEnabled)
	}
}

// ClockCPU advances any mapper IRQ counter that is clocked directly by
// the CPU rather than by PPU bus snooping.
func (c *Cartridge) ClockCPU() {
	if c.Mapper != nil {
		c.Mapper.ClockCPU()
	}
}

// IRQAsserted reports whether the mapper is requesting an interrupt.
func (c *Cartridge) IRQAsserted() bool {
	if c.Mapper != nil {
		return c.Mapper.IRQAsserted()
	}
	return false
}

// ClearIRQ acknowledges a pending mapper IRQ. Not part of the Mapper
// capability interface since most mappers never assert one; mappers
// that do (MMC3) implement it on their concrete type.
func (c *Cartridge) ClearIRQ() {
	if m, ok := c.Mapper.(interface{ ClearIRQ() }); ok {
		m.ClearIRQ()
	}
}

// Mirroring returns the cartridge's current nametable mirroring mode.
func (c *Cartridge) Mirroring() ppu.Mirroring {
	if c.Mapper != nil {
		return c.Mapper.Mirroring()
	}
	return ppu.MirrorHorizontal
}

// GetSRAM returns the battery-backed save RAM contents, if any.
func (c *Cartridge) GetSRAM() []uint8 {
	if c.Mapper != nil {
		return c.Mapper.SRAM()
	}
	return nil
}

// LoadSRAM restores previously saved battery-backed RAM contents.
func (c *Cartridge) LoadSRAM(data []uint8) {
	if c.Mapper != nil {
		c.Mapper.LoadSRAM(data)
	}
}
