package codec

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawFromPercent(t *testing.T) {
	tests := []struct {
		name   string
		pct    int
		maxRaw uint8
		want   uint8
	}{
		{name: "fan half speed", pct: 50, maxRaw: 120, want: 60},
		{name: "light full", pct: 100, maxRaw: 90, want: 90},
		{name: "zero", pct: 0, maxRaw: 120, want: 0},
		{name: "negative clamps to zero", pct: -20, maxRaw: 90, want: 0},
		{name: "above 100 clamps to max", pct: 150, maxRaw: 90, want: 90},
		{name: "half rounds to even (down)", pct: 5, maxRaw: 90, want: 4},
		{name: "half rounds to even (up)", pct: 15, maxRaw: 90, want: 14},
		{name: "quarter rounds down", pct: 1, maxRaw: 125, want: 1},
		{name: "three quarters rounds up", pct: 3, maxRaw: 125, want: 4},
		{name: "full byte range", pct: 100, maxRaw: 255, want: 255},
		{name: "one percent of max byte", pct: 1, maxRaw: 255, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RawFromPercent(tt.pct, tt.maxRaw))
		})
	}
}

func TestRawFromPercent_AlwaysWithinRange(t *testing.T) {
	for maxRaw := 1; maxRaw <= 255; maxRaw++ {
		prev := uint8(0)
		for pct := -50; pct <= 150; pct++ {
			got := RawFromPercent(pct, uint8(maxRaw))
			require.LessOrEqual(t, got, uint8(maxRaw), "pct=%d max=%d", pct, maxRaw)
			require.GreaterOrEqual(t, got, prev, "output MUST be monotonic: pct=%d max=%d", pct, maxRaw)
			prev = got
		}
		require.Equal(t, uint8(0), RawFromPercent(0, uint8(maxRaw)))
		require.Equal(t, uint8(maxRaw), RawFromPercent(100, uint8(maxRaw)))
	}
}

func TestRender_Templates(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{cmd: FanManual(0x3c), want: "01 20 00 00 3c 00 00 00"},
		{cmd: FanAuto(), want: "04 20 00 00 02 00 00 00"},
		{cmd: LightLevel(0x5a), want: "05 20 00 00 5a 00 00 00"},
		{cmd: LightAuto(), want: "08 20 00 00 02 00 00 00"},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.cmd).String())
		})
	}
}

func TestRender_SubstitutesOnlyRawByte(t *testing.T) {
	for _, tc := range []struct {
		build func(uint8) Command
		base  Packet
	}{
		{build: FanManual, base: Packet{0x01, 0x20, 0, 0, 0, 0, 0, 0}},
		{build: LightLevel, base: Packet{0x05, 0x20, 0, 0, 0, 0, 0, 0}},
	} {
		for raw := 0; raw <= 255; raw++ {
			p := Render(tc.build(uint8(raw)))
			require.Equal(t, uint8(raw), p[4])
			for i := range p {
				if i == 4 {
					continue
				}
				require.Equal(t, tc.base[i], p[i], "byte %d for raw %d", i, raw)
			}
		}
	}
}

func TestRender_ScenarioPayloads(t *testing.T) {
	fan := Render(FanManual(RawFromPercent(50, DefaultFanMaxRaw)))
	assert.Equal(t, []byte{0x01, 0x20, 0x00, 0x00, 0x3C, 0x00, 0x00, 0x00}, fan.Bytes())

	light := Render(LightLevel(RawFromPercent(100, DefaultLightMaxRaw)))
	assert.Equal(t, []byte{0x05, 0x20, 0x00, 0x00, 0x5A, 0x00, 0x00, 0x00}, light.Bytes())
}

func TestRender_ZeroCommand(t *testing.T) {
	assert.Equal(t, Packet{}, Render(Command{}))
	assert.False(t, Command{}.Valid())
	assert.True(t, FanManual(0).Valid())
	assert.True(t, LightAuto().Valid())
}

func TestPacket_BytesIsCopy(t *testing.T) {
	p := Render(FanAuto())
	b := p.Bytes()
	b[0] = 0xff
	assert.Equal(t, byte(0x04), p[0])
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "fan_manual(60)", FanManual(60).String())
	assert.Equal(t, "light_auto", LightAuto().String())
	assert.Equal(t, "opcode(0x7f)", Opcode(0x7f).String())
	assert.True(t, LightLevel(1).Parameterized())
	assert.False(t, FanAuto().Parameterized())
	assert.Equal(t, uint8(0), FanAuto().Raw())
}

func TestPercentFromBrightness(t *testing.T) {
	tests := []struct {
		brightness int
		want       int
	}{
		{0, 0},
		{255, 100},
		{128, 50},
		{-1, 0},
		{300, 100},
		{64, 25},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.brightness), func(t *testing.T) {
			assert.Equal(t, tt.want, PercentFromBrightness(tt.brightness))
		})
	}
}

func TestRender_PacketLength(t *testing.T) {
	for _, cmd := range []Command{FanManual(60), FanAuto(), LightLevel(90), LightAuto()} {
		assert.Len(t, Render(cmd).Bytes(), PacketSize, "%s MUST render %d bytes", cmd, PacketSize)
		assert.Len(t, Render(cmd).String(), 3*PacketSize-1, "hex form MUST be space-separated byte pairs")
	}
}
