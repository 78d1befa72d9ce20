// Package refilltest provides a refill.Scheduler that records calls.
package refilltest

import (
	"context"
	"sync"

	"github.com/oggyb/muzz-matchmaker/internal/service/refill"
)

// Call is one recorded Request.
type Call struct {
	UserID int64
	Reason refill.Reason
}

// Recorder implements refill.Scheduler in memory.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Request(_ context.Context, userID int64, reason refill.Reason) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{UserID: userID, Reason: reason})
	return true
}

// Calls returns a copy of the recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}
