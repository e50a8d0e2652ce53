package logic

// LimitIndex runs the staircase lookup. It returns the limit index of the
// last threshold whose temperature is <= tempMilliC, and that threshold's
// position (bracket). Below every threshold it returns (0, -1).
func (p Profile) LimitIndex(tempMilliC int) (limitIndex, bracket int) {
	bracket = -1
	for i, t := range p.Thresholds {
		if tempMilliC < t.TempMilliC {
			break
		}
		limitIndex = t.LimitIndex
		bracket = i
	}
	return limitIndex, bracket
}

// CurrentLimit maps a temperature to a charge current in mA.
func (p Profile) CurrentLimit(tempMilliC int) int {
	idx, _ := p.LimitIndex(tempMilliC)
	return LimitForIndex(idx)
}

// SafestLimit is applied when the temperature cannot be determined: the
// limit of the profile's hottest bracket, or the tightest table entry when
// the profile has no thresholds.
func (p Profile) SafestLimit() int {
	if len(p.Thresholds) == 0 {
		return CurrentLimitTable[len(CurrentLimitTable)-1]
	}
	return LimitForIndex(p.Thresholds[len(p.Thresholds)-1].LimitIndex)
}

// LimitForIndex looks up idx in CurrentLimitTable, clamping out-of-range
// indices to the table bounds.
func LimitForIndex(idx int) int {
	if idx < 0 {
		idx = 0
	}
	if idx >= len(CurrentLimitTable) {
		idx = len(CurrentLimitTable) - 1
	}
	return CurrentLimitTable[idx]
}
