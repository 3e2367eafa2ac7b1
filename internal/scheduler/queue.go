package scheduler

// readyHeap is the frontier: a max-heap of ready vertex indices. The
// largest-numbered ready vertex runs first. Any stable total order would
// do for correctness; index order is deterministic and cheap.
type readyHeap []int

func (h readyHeap) Len() int            { return len(h) }
func (h readyHeap) Less(i, j int) bool  { return h[i] > h[j] }
func (h readyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x interface{}) { *h = append(*h, x.(int)) }

func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
