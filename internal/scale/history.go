// SPDX-License-Identifier: MIT
package scale

// History holds the most recent display columns of a scrolling spectrogram,
// oldest first. Columns pushed beyond its width push the oldest out.
type History struct {
	width int
	cols  [][]Level
}

// NewHistory returns an empty history at most width columns wide.
func NewHistory(width int) *History {
	return &History{width: max(width, 1)}
}

// Push appends a copy of col as the newest column.
func (h *History) Push(col []Level) {
	var dst []Level
	if len(h.cols) >= h.width {
		dst = h.cols[0]
		h.cols = append(h.cols[:0], h.cols[1:]...)
	}
	h.cols = append(h.cols, append(dst[:0], col...))
}

// Resize changes the width, dropping the oldest columns if it shrinks.
func (h *History) Resize(width int) {
	h.width = max(width, 1)
	if extra := len(h.cols) - h.width; extra > 0 {
		h.cols = append(h.cols[:0], h.cols[extra:]...)
	}
}

// Reset drops every column.
func (h *History) Reset() { h.cols = h.cols[:0] }

// Len is the number of stored columns.
func (h *History) Len() int { return len(h.cols) }

// Width is the maximum number of columns.
func (h *History) Width() int { return h.width }

// Column returns column i, 0 being the oldest. The slice is owned by h.
func (h *History) Column(i int) []Level { return h.cols[i] }
