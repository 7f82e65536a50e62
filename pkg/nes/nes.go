package nes

import (
	"github.com/yoshiomiyamaegones/pkg/apu"
	"github.com/yoshiomiyamaegones/pkg/cartridge"
	"github.com/yoshiomiyamaegones/pkg/cpu"
	"github.com/yoshiomiyamaegones/pkg/input"
	"github.com/yoshiomiyamaegones/pkg/memory"
	"github.com/yoshiomiyamaegones/pkg/ppu"
)

// NES is the console orchestrator: it owns every component and drives
// them at their correct clock ratios (1 CPU cycle : 3 PPU dots : 1 APU
// tick) one CPU instruction at a time, services OAM DMA's CPU stall, and
// ORs together every interrupt-line source before presenting it to the
// CPU.
type NES struct {
	CPU       *cpu.CPU
	PPU       *ppu.PPU
	APU       *apu.APU
	Memory    *memory.Memory
	Cartridge *cartridge.Cartridge
	Input     *input.Controller
	Input2    *input.Controller

	Cycles uint64
	Frame  uint64
}

// NewNES creates a new NES instance
func NewNES() *NES {
	nes := &NES{}

	nes.Memory = memory.New()
	nes.CPU = cpu.New(nes.Memory)
	nes.PPU = ppu.New(nes.Memory)
	nes.APU = apu.New()
	nes.Input = input.New()
	nes.Input2 = input.New()

	nes.Memory.SetPPU(nes.PPU)
	nes.Memory.SetAPU(nes.APU)
	nes.Memory.SetInput(nes.Input)
	nes.Memory.SetInput2(nes.Input2)
	nes.APU.SetMemory(nes.Memory)

	return nes
}

// LoadCartridge loads a cartridge into the NES
func (n *NES) LoadCartridge(cart *cartridge.Cartridge) {
	n.Cartridge = cart
	n.Memory.SetCartridge(cart)
	n.PPU.SetCartridge(cart)
}

// Reset resets the NES to initial state
func (n *NES) Reset() {
	n.CPU.Reset()
	n.PPU.Reset()
	n.APU.Reset()
	n.Cycles = 0
	n.Frame = 0
}

// Step executes one CPU instruction's worth of work: the instruction
// itself (or a pending OAM DMA / DMC stall), then the PPU dots and APU
// ticks that ride along with it, then resolves interrupts.
func (n *NES) Step() {
	cpuCycles := n.serviceOAMDMA()
	if cpuCycles == 0 {
		cpuCycles = n.CPU.Step()
	}

	for i := 0; i < cpuCycles*3; i++ {
		n.PPU.Step()

		if n.PPU.NMIRequested {
			n.CPU.TriggerNMI()
			n.PPU.NMIRequested = false
		}
	}

	for i := 0; i < cpuCycles; i++ {
		n.APU.Step()
		if stall := n.APU.ConsumeStall(); stall > 0 {
			n.CPU.Stall(stall)
		}
		if n.Cartridge != nil {
			n.Cartridge.ClockCPU()
		}
	}

	n.Cycles += uint64(cpuCycles)

	// Level-sensitive IRQ line: mapper IRQ (read via the PPU, which owns
	// the Cartridge reference and the A12-snooping wiring) OR'd with the
	// APU's frame and DMC IRQ flags. The mapper's flag stays set until the
	// program acknowledges it through the mapper's own registers.
	mapperIRQ := n.PPU.IsMapperIRQPending()
	n.CPU.SetIRQLine(mapperIRQ || n.APU.FrameIRQAsserted() || n.APU.DMCIRQAsserted())
}

// serviceOAMDMA performs a pending $4014 OAM DMA transfer, stalling the
// CPU for 513 cycles (514 if the transfer starts on an odd CPU cycle)
// and returns that stall as the cycle count for this Step call, or 0 if
// no DMA was pending.
func (n *NES) serviceOAMDMA() int {
	if !n.Memory.DMAPending {
		return 0
	}
	n.Memory.DMAPending = false

	base := uint16(n.Memory.DMAPage) << 8
	for i := 0; i < 256; i++ {
		value := n.Memory.Read(base + uint16(i))
		n.Memory.WriteOAMByte(value)
	}

	stallCycles := 513
	if n.Cycles%2 != 0 {
		stallCycles = 514
	}
	return stallCycles
}

// StepFrame executes until the current frame completes.
func (n *NES) StepFrame() {
	stepCount := 0
	maxSteps := 50000 // guards against runaway loops on a stuck program

	for !n.PPU.FrameComplete {
		n.Step()
		stepCount++

		if stepCount > maxSteps {
			n.PPU.FrameComplete = true
			break
		}
	}

	n.PPU.FrameComplete = false
	n.Frame = n.PPU.Frame
}

// GetInput returns the primary input controller
func (n *NES) GetInput() *input.Controller {
	return n.Input
}

// GetInput2 returns the second input controller
func (n *NES) GetInput2() *input.Controller {
	return n.Input2
}

// GetFramebuffer returns the current frame as RGB bytes, host-ready.
func (n *NES) GetFramebuffer() []uint8 {
	return n.PPU.GetFramebuffer()
}

// GetFrame returns the current frame number
func (n *NES) GetFrame() uint64 {
	return n.Frame
}

// DrainAudioSamples returns and clears the APU's buffered PCM samples.
func (n *NES) DrainAudioSamples() []int16 {
	return n.APU.DrainSamples()
}
