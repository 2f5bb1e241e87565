package lane

// Fits is one frame's left and right fit.
type Fits struct {
	Left  Polynomial `json:"left"`
	Right Polynomial `json:"right"`
}

// FitHistory is a bounded FIFO of recent fits. Pushing onto a full history
// evicts the oldest entry.
type FitHistory struct {
	entries []Fits
	size    int
}

// NewFitHistory returns an empty history holding at most size entries.
func NewFitHistory(size int) *FitHistory {
	if size < 1 {
		size = 1
	}
	return &FitHistory{entries: make([]Fits, 0, size), size: size}
}

// Push appends a fit, evicting the oldest when full.
func (h *FitHistory) Push(p Fits) {
	if len(h.entries) == h.size {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.size-1]
	}
	h.entries = append(h.entries, p)
}

// Mean returns the component-wise mean of the stored fits.
// ok is false when the history is empty.
func (h *FitHistory) Mean() (mean Fits, ok bool) {
	if len(h.entries) == 0 {
		return Fits{}, false
	}
	for _, e := range h.entries {
		mean.Left = mean.Left.Add(e.Left)
		mean.Right = mean.Right.Add(e.Right)
	}
	n := float64(len(h.entries))
	return Fits{Left: mean.Left.Div(n), Right: mean.Right.Div(n)}, true
}

// Len returns the number of stored fits.
func (h *FitHistory) Len() int { return len(h.entries) }

// Clear empties the history.
func (h *FitHistory) Clear() { h.entries = h.entries[:0] }
