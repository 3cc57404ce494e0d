package device

// queue is a slice-backed deque of frames. It compacts when the consumed head
// grows past half of the backing array.
type queue struct {
	items [][]byte
	head  int
}

func (q *queue) len() int { return len(q.items) - q.head }

func (q *queue) pushBack(frame []byte) {
	q.items = append(q.items, frame)
}

func (q *queue) front() ([]byte, bool) {
	if q.len() == 0 {
		return nil, false
	}
	return q.items[q.head], true
}

func (q *queue) popFront() ([]byte, bool) {
	if q.len() == 0 {
		return nil, false
	}
	frame := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	q.compact()
	return frame, true
}

func (q *queue) popBack() ([]byte, bool) {
	if q.len() == 0 {
		return nil, false
	}
	last := len(q.items) - 1
	frame := q.items[last]
	q.items[last] = nil
	q.items = q.items[:last]
	q.compact()
	return frame, true
}

func (q *queue) compact() {
	if q.len() == 0 {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head > len(q.items)/2 {
		n := copy(q.items, q.items[q.head:])
		for i := n; i < len(q.items); i++ {
			q.items[i] = nil
		}
		q.items = q.items[:n]
		q.head = 0
	}
}
