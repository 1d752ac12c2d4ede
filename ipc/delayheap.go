package ipc

import (
	"container/heap"

	"github.com/pandagen/kernel/core"
)

// delayedItem is a single pending delivery, keyed by deliver-at tick
// with ties broken by enqueue order (spec §5 ordering guarantee iii).
type delayedItem struct {
	deliverAt core.Tick
	seq       uint64
	channel   core.ChannelId
	env       Envelope
}

type delayQueue []*delayedItem

func (q delayQueue) Len() int { return len(q) }
func (q delayQueue) Less(i, j int) bool {
	if q[i].deliverAt != q[j].deliverAt {
		return q[i].deliverAt < q[j].deliverAt
	}
	return q[i].seq < q[j].seq
}
func (q delayQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *delayQueue) Push(x any)   { *q = append(*q, x.(*delayedItem)) }
func (q *delayQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}

// DelayHeap is the min-heap of (deliver_at_tick, envelope, channel)
// described in spec §4.D "Delayed delivery".
type DelayHeap struct {
	q   delayQueue
	seq uint64
}

// NewDelayHeap returns an empty delay heap.
func NewDelayHeap() *DelayHeap {
	dh := &DelayHeap{}
	heap.Init(&dh.q)
	return dh
}

// Schedule enqueues env for delivery on channel at deliverAt.
func (dh *DelayHeap) Schedule(deliverAt core.Tick, channel core.ChannelId, env Envelope) {
	dh.seq++
	heap.Push(&dh.q, &delayedItem{deliverAt: deliverAt, seq: dh.seq, channel: channel, env: env})
}

// Drain pops every item with deliverAt <= now, in deliver-tick order,
// and invokes deliver for each. Used by the scheduler before each
// dispatch (spec §4.F) and by advance_time (spec §4.J).
func (dh *DelayHeap) Drain(now core.Tick, deliver func(channel core.ChannelId, env Envelope)) {
	for dh.q.Len() > 0 && dh.q[0].deliverAt <= now {
		item := heap.Pop(&dh.q).(*delayedItem)
		deliver(item.channel, item.env)
	}
}

// Len reports the number of pending delayed deliveries.
func (dh *DelayHeap) Len() int { return dh.q.Len() }
