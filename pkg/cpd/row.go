package cpd

// Run is a single ⟨start_column, symbol⟩ pair in a CPD row's RLE encoding:
// "from this column onward, until the next run's start, the chosen first
// move is symbol".
type Run struct {
	StartColumn uint32
	Symbol      Symbol
}

// representativeSymbol chooses m(c) for a column's allowed set: NONE for an
// empty set, the concrete move for a singleton, WILDCARD otherwise.
func representativeSymbol(a AllowedSet) Symbol {
	if a.IsEmpty() {
		return SymbolNone
	}
	if m, ok := a.Singleton(); ok {
		return Symbol(m)
	}
	return SymbolWildcard
}

// compatible reports whether the open run's stored symbol can still cover
// column c's allowed set without changing the decoded meaning. Only used
// once a run has settled on NONE or a concrete symbol; an open WILDCARD run
// is tracked separately by CompressRow via the running intersection, since
// a single column's non-emptiness isn't enough to keep every earlier column
// in the run honest (see the runSet tracking below).
func compatible(sym Symbol, a AllowedSet) bool {
	switch sym {
	case SymbolNone:
		return a.IsEmpty()
	default:
		return a.Contains(int(sym))
	}
}

// CompressRow encodes colsByOrder (one allowed set per O-space column, so
// colsByOrder[c] is A[to_old[c]]) into the minimum-length run sequence such
// that decoding reproduces the representative symbol at every column,
// modulo wildcard promotion.
//
// An open WILDCARD run carries runSet, the intersection of every column's
// allowed set absorbed into it so far. A new column only extends the run if
// it keeps runSet non-empty, and the run promotes to a concrete symbol only
// once runSet itself narrows to a singleton — at which point every column
// absorbed so far, not just the newest one, is guaranteed to contain that
// symbol.
//
// When a WILDCARD run closes and its runSet does not contain out-edge 0,
// the run is pinned to the lowest edge in runSet, so every WILDCARD left in
// the output admits out-edge 0, the edge CPD.resolveEdge takes for it.
func CompressRow(colsByOrder []AllowedSet) []Run {
	n := len(colsByOrder)
	if n == 0 {
		return nil
	}
	runs := make([]Run, 0, 4)
	curSym := representativeSymbol(colsByOrder[0])
	runs = append(runs, Run{StartColumn: 0, Symbol: curSym})
	var runSet AllowedSet
	if curSym == SymbolWildcard {
		runSet = colsByOrder[0]
	}
	settle := func() {
		if curSym != SymbolWildcard || runSet.Contains(0) {
			return
		}
		for i := 1; ; i++ {
			if runSet.Contains(i) {
				runs[len(runs)-1].Symbol = Symbol(i)
				return
			}
		}
	}

	for c := 1; c < n; c++ {
		a := colsByOrder[c]
		if curSym == SymbolWildcard {
			inter := runSet.Intersect(a)
			if !inter.IsEmpty() {
				runSet = inter
				if m, ok := runSet.Singleton(); ok {
					curSym = Symbol(m)
					runs[len(runs)-1].Symbol = curSym
				}
				continue
			}
		} else if compatible(curSym, a) {
			continue
		}
		settle()
		curSym = representativeSymbol(a)
		runs = append(runs, Run{StartColumn: uint32(c), Symbol: curSym})
		if curSym == SymbolWildcard {
			runSet = a
		}
	}
	settle()
	return runs
}

// DecodeColumn returns the symbol stored for column c by binary-searching
// the largest run start <= c. Runs must be sorted by StartColumn, as
// produced by CompressRow or read from a file. An empty row decodes to
// SymbolNone.
func DecodeColumn(runs []Run, c uint32) Symbol {
	if len(runs) == 0 {
		return SymbolNone
	}
	lo, hi := 0, len(runs)-1
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if runs[mid].StartColumn <= c {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return runs[best].Symbol
}
