package search

import "math"

// CutoffReason identifies which stopping condition, if any, ended a query
// before the open list drained naturally.
type CutoffReason int

const (
	// CutoffNone means the search ran until the open list emptied, with no
	// cutoff and no certificate stopping it.
	CutoffNone CutoffReason = iota
	CutoffCost
	CutoffExpansions
	CutoffTime
	// CutoffOptimal marks the f == ub early-stop: the incumbent is
	// certified optimal (or within quality ratio), not merely cut off.
	CutoffOptimal
)

func (r CutoffReason) String() string {
	switch r {
	case CutoffNone:
		return "none"
	case CutoffCost:
		return "cost"
	case CutoffExpansions:
		return "expansions"
	case CutoffTime:
		return "time"
	case CutoffOptimal:
		return "optimal"
	default:
		return "unknown"
	}
}

// Options mirrors the query API's options struct: cutoffs plus the
// heuristic-shaping and diagnostic knobs.
type Options struct {
	CostCutoff      float64
	ExpansionCutoff uint32
	TimeCutoffNano  int64
	HScale          float64
	QualityRatio    float64
	// KMovesMax bounds search depth in first-moves from target; accepted
	// for API compatibility but not yet enforced by Engine.GetPath.
	KMovesMax uint32
	Debug     bool
	Verbose   bool
}

// DefaultOptions returns the permissive baseline: no cutoffs, unit
// heuristic scale, quality ratio 1 (must-be-optimal-or-timeout).
func DefaultOptions() Options {
	return Options{
		CostCutoff:      math.Inf(1),
		ExpansionCutoff: math.MaxUint32,
		TimeCutoffNano:  math.MaxInt64,
		HScale:          1,
		QualityRatio:    1,
		KMovesMax:       math.MaxUint32,
	}
}

func (o Options) normalized() Options {
	if o.HScale <= 0 {
		o.HScale = 1
	}
	if o.QualityRatio < 1 {
		o.QualityRatio = 1
	}
	if o.CostCutoff <= 0 {
		o.CostCutoff = math.Inf(1)
	}
	if o.ExpansionCutoff == 0 {
		o.ExpansionCutoff = math.MaxUint32
	}
	if o.TimeCutoffNano <= 0 {
		o.TimeCutoffNano = math.MaxInt64
	}
	return o
}
