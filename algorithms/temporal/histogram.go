package temporal

// histogramBin is one BPM bucket and its accumulated weight
type histogramBin struct {
	BPM    int
	Weight float64
}

// tempoHistogram accumulates weight per integer BPM and remembers the
// order in which buckets were first touched, so ties resolve to the
// earliest bucket independent of map iteration order.
type tempoHistogram struct {
	index map[int]int
	bins  []histogramBin
	total float64
}

func newTempoHistogram() *tempoHistogram {
	return &tempoHistogram{index: make(map[int]int)}
}

// add ignores non-positive weights so an empty bucket can never win
func (h *tempoHistogram) add(bpm int, weight float64) {
	if weight <= 0 {
		return
	}
	if i, ok := h.index[bpm]; ok {
		h.bins[i].Weight += weight
	} else {
		h.index[bpm] = len(h.bins)
		h.bins = append(h.bins, histogramBin{BPM: bpm, Weight: weight})
	}
	h.total += weight
}

// best returns the bucket with the strictly greatest weight
func (h *tempoHistogram) best() (histogramBin, bool) {
	if len(h.bins) == 0 {
		return histogramBin{}, false
	}

	winner := h.bins[0]
	for _, bin := range h.bins[1:] {
		if bin.Weight > winner.Weight {
			winner = bin
		}
	}
	return winner, true
}

func (h *tempoHistogram) weight(bpm int) float64 {
	if i, ok := h.index[bpm]; ok {
		return h.bins[i].Weight
	}
	return 0
}

func (h *tempoHistogram) len() int {
	return len(h.bins)
}
