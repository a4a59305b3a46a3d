package detect

// stabilityWindow is a fixed-capacity ring of "close to baseline" flags. Once
// full, each push evicts the oldest flag.
type stabilityWindow struct {
	flags  []bool
	head   int // next write position
	size   int
	stable int
}

func newStabilityWindow(capacity int) *stabilityWindow {
	return &stabilityWindow{flags: make([]bool, capacity)}
}

func (w *stabilityWindow) push(stable bool) {
	if w.size == len(w.flags) {
		if w.flags[w.head] {
			w.stable--
		}
	} else {
		w.size++
	}
	w.flags[w.head] = stable
	if stable {
		w.stable++
	}
	w.head = (w.head + 1) % len(w.flags)
}

func (w *stabilityWindow) stableCount() int { return w.stable }

func (w *stabilityWindow) len() int { return w.size }

func (w *stabilityWindow) reset() {
	clear(w.flags)
	w.head, w.size, w.stable = 0, 0, 0
}
