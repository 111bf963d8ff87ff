package services

import (
	"sync"
	"time"
)

// SchedulerState is the process local side of distribution runs: the
// in-progress guard and the next scheduled run. It is shared by every
// trigger (cron, API, CLI) of one Service. Totals live in the database.
type SchedulerState struct {
	mu      sync.Mutex
	running bool
	nextRun *time.Time
}

func NewSchedulerState() *SchedulerState {
	return &SchedulerState{}
}

// TryStart marks a batch as running. It returns false when one already is.
func (st *SchedulerState) TryStart() bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.running {
		return false
	}
	st.running = true
	return true
}

func (st *SchedulerState) Finish() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.running = false
}

func (st *SchedulerState) IsRunning() bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.running
}

func (st *SchedulerState) SetNextRun(next time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.nextRun = &next
}

func (st *SchedulerState) NextRun() *time.Time {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.nextRun == nil {
		return nil
	}
	next := *st.nextRun
	return &next
}
