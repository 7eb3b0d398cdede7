package session

// PendingRequest is a client-queued chunk request awaiting sufficient
// recorded data, per (start, stop) in seconds.
type PendingRequest struct {
	Start float32
	Stop  float32
}

// NumServicable returns the count of pending requests (from the head) whose
// Stop is at most t. Requests are serviced in FIFO order, so this counts a
// contiguous prefix.
func (s *Session) NumServicable(t float64) int {
	n := 0
	for _, r := range s.pending {
		if float64(r.Stop) > t {
			break
		}
		n++
	}
	return n
}

// AddPendingRequest appends a request to the tail of the FIFO queue.
func (s *Session) AddPendingRequest(r PendingRequest) {
	s.pending = append(s.pending, r)
}

// PopNextRequest removes and returns the head of the FIFO queue.
func (s *Session) PopNextRequest() (PendingRequest, bool) {
	if len(s.pending) == 0 {
		return PendingRequest{}, false
	}
	r := s.pending[0]
	s.pending = s.pending[1:]
	return r, true
}

// SetAllData sets the all-data subscription flag.
func (s *Session) SetAllData(v bool) { s.allData = v }

// RequestedAllData reports the all-data subscription flag.
func (s *Session) RequestedAllData() bool { return s.allData }
