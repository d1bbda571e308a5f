package network

import (
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

type mailKey struct {
	source NodeID
	dir    tuple.Direction
	t      tuple.Tuple
}

type slot struct {
	msg  UpdateMessage
	live bool
}

// mailbox buffers the deltas destined for one receiver in FIFO order. Posting a delta whose
// exact opposite, from the same source, is still queued cancels both instead of queueing.
type mailbox struct {
	queue []slot
	head  int
	live  int
	// positions of the live queued messages per key, ascending.
	index map[mailKey][]int
}

func newMailbox() *mailbox {
	return &mailbox{index: map[mailKey][]int{}}
}

// post queues msg and reports whether it was queued, false if it cancelled a queued delta.
func (m *mailbox) post(msg UpdateMessage) bool {
	opposite := mailKey{source: msg.Source, dir: msg.Direction.Opposite(), t: msg.Tuple}
	if positions := m.index[opposite]; len(positions) > 0 {
		last := positions[len(positions)-1]
		m.queue[last].live = false
		m.live--
		if len(positions) == 1 {
			delete(m.index, opposite)
		} else {
			m.index[opposite] = positions[:len(positions)-1]
		}
		m.compact()
		return false
	}

	key := mailKey{source: msg.Source, dir: msg.Direction, t: msg.Tuple}
	m.index[key] = append(m.index[key], len(m.queue))
	m.queue = append(m.queue, slot{msg: msg, live: true})
	m.live++
	return true
}

// take removes the oldest live message.
func (m *mailbox) take() (UpdateMessage, bool) {
	for m.head < len(m.queue) {
		s := m.queue[m.head]
		m.queue[m.head] = slot{}
		m.head++
		if !s.live {
			continue
		}
		key := mailKey{source: s.msg.Source, dir: s.msg.Direction, t: s.msg.Tuple}
		if positions := m.index[key]; len(positions) == 1 {
			delete(m.index, key)
		} else {
			m.index[key] = positions[1:]
		}
		m.live--
		m.compact()
		return s.msg, true
	}
	return UpdateMessage{}, false
}

func (m *mailbox) len() int {
	return m.live
}

// compact rewinds the queue once every queued message has been consumed or cancelled.
func (m *mailbox) compact() {
	if m.live == 0 {
		m.queue = m.queue[:0]
		m.head = 0
		clear(m.index)
	}
}
