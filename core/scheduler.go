package core

// Timer is a scheduled event on the system clock.
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

// Timer handler results.
const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps pending timers sorted by wake time.
type Scheduler struct {
	head *Timer
}

// Schedule inserts t. A timer that is already queued is moved.
func (s *Scheduler) Schedule(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.remove(t)
	s.insert(t)
}

// Cancel removes t if it is queued.
func (s *Scheduler) Cancel(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.remove(t)
}

// Pending reports whether any timer is queued.
func (s *Scheduler) Pending() bool {
	return s.head != nil
}

func (s *Scheduler) insert(t *Timer) {
	if s.head == nil || clockBefore(t.WakeTime, s.head.WakeTime) {
		t.Next = s.head
		s.head = t
		return
	}

	cur := s.head
	for cur.Next != nil && !clockBefore(t.WakeTime, cur.Next.WakeTime) {
		cur = cur.Next
	}
	t.Next = cur.Next
	cur.Next = t
}

func (s *Scheduler) remove(t *Timer) {
	if s.head == t {
		s.head = t.Next
		t.Next = nil
		return
	}
	for cur := s.head; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// Dispatch runs every timer whose wake time is not after now.
func (s *Scheduler) Dispatch(now uint32) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for s.head != nil && !clockBefore(now, s.head.WakeTime) {
		t := s.head
		s.head = t.Next
		t.Next = nil

		if t.Handler(t) == SF_RESCHEDULE {
			s.insert(t)
		}
	}
}
