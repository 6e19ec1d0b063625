package registry

import (
	"container/heap"

	"github.com/mit-dci/parsec-local/localnet"
)

// handleHeap is a min-heap of handles ordered by creation order, oldest first.
// Ties (which Record rejects) fall back to pid for a deterministic order.
type handleHeap struct {
	handles []localnet.ProcessHandle
}

func newHandleHeap() *handleHeap {
	h := &handleHeap{handles: make([]localnet.ProcessHandle, 0)}
	heap.Init(h)
	return h
}

// Len implements heap.Interface
func (h *handleHeap) Len() int {
	return len(h.handles)
}

// Less implements heap.Interface
func (h *handleHeap) Less(i, j int) bool {
	hi, hj := h.handles[i], h.handles[j]
	if hi.CreationOrder != hj.CreationOrder {
		return hi.CreationOrder < hj.CreationOrder
	}
	return hi.PID < hj.PID
}

// Swap implements heap.Interface
func (h *handleHeap) Swap(i, j int) {
	h.handles[i], h.handles[j] = h.handles[j], h.handles[i]
}

// Push implements heap.Interface
func (h *handleHeap) Push(x interface{}) {
	h.handles = append(h.handles, x.(localnet.ProcessHandle))
}

// Pop implements heap.Interface
func (h *handleHeap) Pop() interface{} {
	old := h.handles
	n := len(old)
	item := old[n-1]
	h.handles = old[0 : n-1]
	return item
}

func (h *handleHeap) push(ph localnet.ProcessHandle) {
	heap.Push(h, ph)
}

func (h *handleHeap) popOldest() (localnet.ProcessHandle, bool) {
	if h.Len() == 0 {
		return localnet.ProcessHandle{}, false
	}
	return heap.Pop(h).(localnet.ProcessHandle), true
}

func (h *handleHeap) peek() (localnet.ProcessHandle, bool) {
	if h.Len() == 0 {
		return localnet.ProcessHandle{}, false
	}
	return h.handles[0], true
}
