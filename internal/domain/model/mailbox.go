package model

import "github.com/webitel/im-signaling-service/internal/domain/event"

// mailbox is a bounded FIFO ring of outbound events. Not safe for concurrent
// use; the owning connector guards it.
type mailbox struct {
	buf  []event.Eventer
	head int
	size int
}

func newMailbox(capacity int) *mailbox {
	return &mailbox{buf: make([]event.Eventer, capacity)}
}

func (m *mailbox) count() int { return m.size }
func (m *mailbox) full() bool { return m.size == len(m.buf) }

func (m *mailbox) at(i int) int { return (m.head + i) % len(m.buf) }

func (m *mailbox) push(ev event.Eventer) {
	m.buf[m.at(m.size)] = ev
	m.size++
}

func (m *mailbox) pop() (event.Eventer, bool) {
	if m.size == 0 {
		return nil, false
	}
	ev := m.buf[m.head]
	m.buf[m.head] = nil
	m.head = m.at(1)
	m.size--
	return ev, true
}

// evictBelow removes the oldest event with a priority lower than p.
// Younger events shift one slot towards the head, so the survivors keep their order.
func (m *mailbox) evictBelow(p event.Priority) bool {
	for i := 0; i < m.size; i++ {
		if m.buf[m.at(i)].GetPriority() >= p {
			continue
		}
		for j := i; j < m.size-1; j++ {
			m.buf[m.at(j)] = m.buf[m.at(j+1)]
		}
		m.buf[m.at(m.size-1)] = nil
		m.size--
		return true
	}
	return false
}
