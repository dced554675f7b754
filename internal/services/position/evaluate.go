// Package position evaluates a strategy's state machine against a single price.
//
// States move waiting_entry -> in_position -> {completed, stopped}. A tick may
// enter and resolve in one step; the result then carries the resolving event
// with Entered set. Targets are scanned from the furthest level down so a jump
// across several levels yields one event for the highest level reached.
package position

import (
	"math"

	"PulseScan/internal/domain/models"
)

// DefaultEpsilon is the relative tolerance applied to targets and stop-loss.
const DefaultEpsilon = 0.001

// DefaultMinorMove is the relative move that warrants a silent price update.
const DefaultMinorMove = 0.001

// Result is the outcome of one evaluation. Changed is false when no event fires.
type Result struct {
	Changed    bool
	Kind       models.StrategyEventKind
	Entered    bool
	Level      float64
	Status     models.StrategyStatus
	TargetsHit int
}

// Evaluate runs entry, target and stop-loss checks in that order.
func Evaluate(s models.Strategy, price, epsilon float64) Result {
	res := Result{Status: s.Status, TargetsHit: s.TargetsHit}
	if !s.Status.Tracked() {
		return res
	}

	if res.Status == models.StatusWaitingEntry {
		level, ok := EntryLevel(s)
		if !ok || !entryReached(s.Direction, price, level) {
			return res
		}
		res.Status = models.StatusInPosition
		res.Entered = true
		res.Changed = true
		res.Kind = models.EventEntryReached
		res.Level = level
	}

	targets := s.Targets()
	highest := s.HighestTarget()
	for idx := len(targets); idx >= 1; idx-- {
		level := targets[idx-1]
		if level <= 0 || !targetHit(s.Direction, price, level, epsilon) {
			continue
		}
		if idx > res.TargetsHit {
			res.TargetsHit = idx
			res.Changed = true
			res.Kind = models.TargetEvent(idx)
			res.Level = level
			if idx >= highest {
				res.Status = models.StatusCompleted
			}
			return res
		}
		break
	}

	if s.StopLoss > 0 && stopHit(s.Direction, price, s.StopLoss, epsilon) {
		res.Status = models.StatusStopped
		res.Changed = true
		res.Kind = models.EventStopLoss
		res.Level = s.StopLoss
	}
	return res
}

// EntryLevel is the price that opens the position. LONG enters at or below
// EntryMax, falling back to EntryMin; SHORT enters at or above EntryMin.
func EntryLevel(s models.Strategy) (float64, bool) {
	switch s.Direction {
	case models.Long:
		if s.EntryMax != nil && *s.EntryMax > 0 {
			return *s.EntryMax, true
		}
		if s.EntryMin > 0 {
			return s.EntryMin, true
		}
	case models.Short:
		if s.EntryMin > 0 {
			return s.EntryMin, true
		}
	}
	return 0, false
}

// MovedEnough reports whether price differs from last by more than minor (relative).
func MovedEnough(last, price, minor float64) bool {
	if last <= 0 {
		return true
	}
	return math.Abs(price-last)/last > minor
}

func entryReached(dir models.Direction, price, level float64) bool {
	if dir == models.Short {
		return price >= level
	}
	return price <= level
}

func targetHit(dir models.Direction, price, level, eps float64) bool {
	if dir == models.Short {
		return price <= level*(1+eps)
	}
	return price >= level*(1-eps)
}

func stopHit(dir models.Direction, price, level, eps float64) bool {
	if dir == models.Short {
		return price >= level*(1-eps)
	}
	return price <= level*(1+eps)
}
