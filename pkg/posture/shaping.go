package posture

import (
	"math"

	"github.com/teslashibe/go-jumpstick/pkg/input"
)

const fullTurn = 2 * math.Pi

// Expo blends linear and cubic response: (1-e)x + e·x³.
func Expo(x, e float64) float64 {
	return (1-e)*x + e*x*x*x
}

// Rescale maps an axis value so the dead zone edge reads 0 and full
// deflection reads ±1.
func Rescale(v, deadZone int32) float64 {
	a := v
	if a < 0 {
		a = -a
	}
	if a < deadZone || deadZone >= input.AxisMax {
		return 0
	}
	u := float64(a-deadZone) / float64(input.AxisMax-deadZone)
	if u > 1 {
		u = 1
	}
	if v < 0 {
		return -u
	}
	return u
}

// TriggerPull normalizes a trigger reading over deadZone..TriggerMax.
func TriggerPull(v, deadZone int32) float64 {
	if v <= deadZone || deadZone >= input.TriggerMax {
		return 0
	}
	u := float64(v-deadZone) / float64(input.TriggerMax-deadZone)
	if u > 1 {
		u = 1
	}
	return u
}

// FoldTurns returns how many full turns a fold absorbs from jog. The
// residual stays in the half turn the arms already occupy.
func FoldTurns(jog float64) float64 {
	k := math.Floor(jog / fullTurn)
	r := jog - fullTurn*k
	if r > math.Pi {
		k++
	}
	return k
}
