// Package codec renders fan/light commands into the fixed 8-byte packets understood by
// the hood's command characteristic.
package codec

import (
	"encoding/hex"
	"fmt"
	"math"
)

// PacketSize is the length of every command packet.
const PacketSize = 8

// rawIndex is the packet byte carrying the level for parameterized commands.
const rawIndex = 4

const (
	// DefaultLightMaxRaw is the light raw level that maps to 100%.
	DefaultLightMaxRaw uint8 = 90
	// DefaultFanMaxRaw is the fan raw level that maps to 100% (observed max 0x78).
	DefaultFanMaxRaw uint8 = 120
)

// Opcode identifies a command family (packet byte 0).
type Opcode byte

const (
	OpFanManual  Opcode = 0x01
	OpFanAuto    Opcode = 0x04
	OpLightLevel Opcode = 0x05
	OpLightAuto  Opcode = 0x08
)

// String returns a short name for logs.
func (o Opcode) String() string {
	switch o {
	case OpFanManual:
		return "fan_manual"
	case OpFanAuto:
		return "fan_auto"
	case OpLightLevel:
		return "light_level"
	case OpLightAuto:
		return "light_auto"
	default:
		return fmt.Sprintf("opcode(0x%02x)", byte(o))
	}
}

// Packet is a rendered command.
type Packet [PacketSize]byte

// String renders the packet as space separated hex, e.g. "01 20 00 00 3c 00 00 00".
func (p Packet) String() string {
	out := make([]byte, 0, PacketSize*3-1)
	for i, b := range p {
		if i > 0 {
			out = append(out, ' ')
		}
		out = hex.AppendEncode(out, []byte{b})
	}
	return string(out)
}

// Bytes returns a copy of the packet as a slice.
func (p Packet) Bytes() []byte {
	b := make([]byte, PacketSize)
	copy(b, p[:])
	return b
}

var templates = map[Opcode]Packet{
	OpFanManual:  {0x01, 0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	OpFanAuto:    {0x04, 0x20, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00},
	OpLightLevel: {0x05, 0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	OpLightAuto:  {0x08, 0x20, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00},
}

// Command is one of the four device commands. Construct with FanManual, FanAuto,
// LightLevel or LightAuto.
type Command struct {
	op  Opcode
	raw uint8
}

// FanManual sets the fan to a raw speed.
func FanManual(raw uint8) Command { return Command{op: OpFanManual, raw: raw} }

// FanAuto hands fan control to the hood's sensor.
func FanAuto() Command { return Command{op: OpFanAuto} }

// LightLevel sets the light to a raw brightness.
func LightLevel(raw uint8) Command { return Command{op: OpLightLevel, raw: raw} }

// LightAuto hands light control to the hood's sensor.
func LightAuto() Command { return Command{op: OpLightAuto} }

// Opcode returns the command family.
func (c Command) Opcode() Opcode { return c.op }

// Raw returns the substituted level. Always 0 for auto commands.
func (c Command) Raw() uint8 { return c.raw }

// Parameterized reports whether the command carries a raw level.
func (c Command) Parameterized() bool {
	return c.op == OpFanManual || c.op == OpLightLevel
}

// Valid reports whether c was built by one of the constructors.
func (c Command) Valid() bool {
	_, ok := templates[c.op]
	return ok
}

func (c Command) String() string {
	if c.Parameterized() {
		return fmt.Sprintf("%s(%d)", c.op, c.raw)
	}
	return c.op.String()
}

// Render returns the packet for cmd. The zero Command is not valid and renders as an
// all-zero packet.
func Render(cmd Command) Packet {
	p, ok := templates[cmd.op]
	if !ok {
		return Packet{}
	}
	if cmd.Parameterized() {
		p[rawIndex] = cmd.raw
	}
	return p
}

// RawFromPercent clamps pct to [0,100] and scales it to [0,maxRaw], rounding half to even.
func RawFromPercent(pct int, maxRaw uint8) uint8 {
	pct = max(0, min(100, pct))
	return uint8(math.RoundToEven(float64(pct) * float64(maxRaw) / 100))
}

// PercentFromBrightness converts a 0..255 host brightness to 0..100 percent using the same
// rounding rule as RawFromPercent.
func PercentFromBrightness(brightness int) int {
	brightness = max(0, min(255, brightness))
	return int(math.RoundToEven(float64(brightness) * 100 / 255))
}
