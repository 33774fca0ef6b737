// Package jobqueue implements the ordered FIFO of caller jobs attached to
// each cached piece (spec section 3's "jobs" attribute, section 4's "Job
// queue per piece" component). Jobs on the same piece must complete in the
// order they were enqueued.
package jobqueue

import "github.com/rkennedy/peercache"

// Queue is an ordered, slice-backed FIFO of jobs gated on one piece. It's
// deliberately a plain slice rather than a linked list: pieces rarely have
// more than a handful of jobs outstanding, so the O(n) RemoveAt is cheaper in
// practice than the pointer-chasing a linked list would cost.
type Queue struct {
	jobs []*peercache.Job
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{}
}

// Append adds a job to the back of the queue.
func (q *Queue) Append(job *peercache.Job) {
	q.jobs = append(q.jobs, job)
}

// Len returns the number of jobs currently queued.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Empty reports whether the queue has no jobs.
func (q *Queue) Empty() bool {
	return len(q.jobs) == 0
}

// At returns the job at position i without removing it.
func (q *Queue) At(i int) *peercache.Job {
	return q.jobs[i]
}

// RemoveAt removes the job at position i, preserving order.
func (q *Queue) RemoveAt(i int) {
	q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
}

// Each calls fn for every queued job, in FIFO order. fn returns true to
// remove the job it was just given (the walk accounts for the shrinking
// slice), false to leave it queued.
func (q *Queue) Each(fn func(job *peercache.Job) (remove bool)) {
	i := 0
	for i < len(q.jobs) {
		if fn(q.jobs[i]) {
			q.RemoveAt(i)
			continue
		}
		i++
	}
}

// Drain removes and returns every queued job, in order, leaving the queue
// empty.
func (q *Queue) Drain() []*peercache.Job {
	jobs := q.jobs
	q.jobs = nil
	return jobs
}
