package store

import "sync"

// feed is the delivery half shared by the store drivers. Producers push snapshots
// with enqueue; a single goroutine forwards them in FIFO order to the consumer.
type feed struct {
	out     chan Snapshot
	done    chan struct{}
	wake    chan struct{}
	stopped chan struct{}

	mu      sync.Mutex
	pending []Snapshot
	ending  bool

	once    sync.Once
	onClose func()
}

func newFeed(onClose func()) *feed {
	f := &feed{
		out:     make(chan Snapshot),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		onClose: onClose,
	}
	go f.deliver()
	return f
}

func (f *feed) Snapshots() <-chan Snapshot { return f.out }

func (f *feed) Cancel() {
	f.once.Do(func() {
		close(f.done)
		<-f.stopped
		close(f.out)
		if f.onClose != nil {
			f.onClose()
		}
	})
}

// end closes the feed from the producer side once everything queued so far has
// been delivered. It blocks until the consumer drains the queue or cancels, so it
// must not run on a path that onClose waits for.
func (f *feed) end() {
	f.mu.Lock()
	f.ending = true
	f.mu.Unlock()
	f.signal()

	<-f.stopped
	f.Cancel()
}

// enqueue never blocks. Snapshots queued after Cancel are dropped.
func (f *feed) enqueue(s Snapshot) {
	f.mu.Lock()
	f.pending = append(f.pending, s)
	f.mu.Unlock()
	f.signal()
}

func (f *feed) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *feed) cancelled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *feed) deliver() {
	defer close(f.stopped)
	for {
		f.mu.Lock()
		var next Snapshot
		have := len(f.pending) > 0
		if have {
			next = f.pending[0]
			f.pending[0] = Snapshot{}
			f.pending = f.pending[1:]
		}
		ending := f.ending
		f.mu.Unlock()

		if !have {
			if ending {
				return
			}
			select {
			case <-f.wake:
				continue
			case <-f.done:
				return
			}
		}

		select {
		case f.out <- next:
		case <-f.done:
			return
		}
	}
}
