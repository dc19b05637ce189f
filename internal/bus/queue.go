package bus

import "github.com/supportstack/tickets/internal/events"

// Queue is an unbounded FIFO of envelopes. Pushes never block on a slow
// consumer; order is preserved. Close stops intake, and the output channel
// closes once the buffer drains.
type Queue struct {
	in  chan events.Envelope
	out chan events.Envelope
}

// NewQueue creates a Queue and starts its pump.
func NewQueue() *Queue {
	q := &Queue{
		in:  make(chan events.Envelope),
		out: make(chan events.Envelope),
	}
	go q.pump()
	return q
}

// Push appends an envelope. Must not be called after Close.
func (q *Queue) Push(envelope events.Envelope) {
	q.in <- envelope
}

// Out is the receive side of the queue.
func (q *Queue) Out() <-chan events.Envelope {
	return q.out
}

// Close stops intake. Buffered envelopes still drain to Out before it closes.
func (q *Queue) Close() {
	close(q.in)
}

func (q *Queue) pump() {
	var buffer []events.Envelope
	in := q.in

	for in != nil || len(buffer) > 0 {
		var out chan events.Envelope
		var head events.Envelope
		if len(buffer) > 0 {
			out = q.out
			head = buffer[0]
		}

		select {
		case envelope, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buffer = append(buffer, envelope)
		case out <- head:
			buffer = buffer[1:]
		}
	}
	close(q.out)
}
