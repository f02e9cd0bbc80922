package call

import "sync"

// mailboxBuf is the depth of a call's message queue. Deep enough that timer
// fires, recognizer callbacks and operator mutations never block each other
// under normal load.
const mailboxBuf = 256

// mailbox is the single-writer queue that serializes all mutations of one
// call's state. Exactly one goroutine drains it; every external event —
// telephony, timer fire, recognizer callback, VAD, DTMF, playback lifecycle,
// operator mutation — enters as an enqueued message.
type mailbox struct {
	msgs chan func()

	closeOnce sync.Once
	closed    chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		msgs:   make(chan func(), mailboxBuf),
		closed: make(chan struct{}),
	}
}

// enqueue adds a message to the queue. It reports false when the mailbox has
// already shut down; late events after call teardown are dropped.
func (m *mailbox) enqueue(f func()) bool {
	select {
	case <-m.closed:
		return false
	default:
	}
	select {
	case m.msgs <- f:
		return true
	case <-m.closed:
		return false
	}
}

// run drains the queue until close. It must be called from exactly one
// goroutine; that goroutine is the sole owner of the call state.
func (m *mailbox) run() {
	for {
		select {
		case f := <-m.msgs:
			f()
		case <-m.closed:
			// Drain what was enqueued before the close won the race.
			for {
				select {
				case f := <-m.msgs:
					f()
				default:
					return
				}
			}
		}
	}
}

// close stops the queue. Messages already enqueued are still processed.
func (m *mailbox) close() {
	m.closeOnce.Do(func() { close(m.closed) })
}
