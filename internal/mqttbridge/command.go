package mqttbridge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/srg/sensectl/internal/codec"
)

// Topic suffixes under the configured prefix.
const (
	TopicFanSet             = "fan/set"
	TopicLightSet           = "light/set"
	TopicLightBrightnessSet = "light/brightness/set"
	TopicStatus             = "status"
)

// Status payloads published, retained, on TopicStatus.
const (
	StatusOnline      = "online"
	StatusUnreachable = "unreachable"
	StatusOffline     = "offline"
)

// FanOnPercent is the level "on" selects for the fan.
const FanOnPercent = 25

// ErrBadPayload is wrapped by every rejected command payload.
var ErrBadPayload = errors.New("bad payload")

// Target is the hood subsystem a command drives.
type Target int

const (
	TargetFan Target = iota
	TargetLight
)

func (t Target) String() string {
	if t == TargetLight {
		return "light"
	}
	return "fan"
}

// Action is a parsed command.
type Action struct {
	Target  Target
	Auto    bool
	Percent int
}

func (a Action) String() string {
	if a.Auto {
		return a.Target.String() + " auto"
	}
	return fmt.Sprintf("%s %d%%", a.Target, a.Percent)
}

// ParseAction decodes a payload received on one of the command topics. suffix is the
// topic without the prefix.
func ParseAction(suffix string, payload []byte) (Action, error) {
	p := strings.ToLower(strings.TrimSpace(string(payload)))

	switch suffix {
	case TopicFanSet:
		return parseMode(TargetFan, p, FanOnPercent)
	case TopicLightSet:
		return parseMode(TargetLight, p, 100)
	case TopicLightBrightnessSet:
		b, err := strconv.Atoi(p)
		if err != nil || b < 0 || b > 255 {
			return Action{}, fmt.Errorf("%w: brightness %q must be an integer in 0..255", ErrBadPayload, p)
		}
		return Action{Target: TargetLight, Percent: codec.PercentFromBrightness(b)}, nil
	default:
		return Action{}, fmt.Errorf("%w: unknown topic %q", ErrBadPayload, suffix)
	}
}

func parseMode(target Target, p string, onPercent int) (Action, error) {
	switch p {
	case "auto":
		return Action{Target: target, Auto: true}, nil
	case "on":
		return Action{Target: target, Percent: onPercent}, nil
	case "off":
		return Action{Target: target}, nil
	}
	pct, err := strconv.Atoi(strings.TrimSuffix(p, "%"))
	if err != nil {
		return Action{}, fmt.Errorf("%w: %s expects auto, on, off or a percentage, got %q", ErrBadPayload, target, p)
	}
	return Action{Target: target, Percent: pct}, nil
}
