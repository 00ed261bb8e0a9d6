// Package hashworker runs bcrypt computations on a bounded pool of
// worker goroutines. bcrypt is deliberately slow; without a bound, a
// burst of logins could pin every CPU and starve unrelated requests.
package hashworker

import (
	"context"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

type job struct {
	run  func() (string, error)
	done chan result
}

type result struct {
	value string
	err   error
}

// Pool executes hash and compare jobs on a fixed number of workers.
type Pool struct {
	cost int
	jobs chan job

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts a pool with the given number of workers. cost is the bcrypt
// work factor applied to new hashes; verification reads the cost embedded
// in the stored hash.
func New(workers, cost int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		cost: cost,
		jobs: make(chan job),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Hash derives a salted bcrypt hash of password on a pool worker.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	return p.submit(ctx, func() (string, error) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
		if err != nil {
			return "", err
		}
		return string(hash), nil
	})
}

// Compare verifies password against the stored hash on a pool worker.
// Returns bcrypt.ErrMismatchedHashAndPassword on mismatch.
func (p *Pool) Compare(ctx context.Context, hash, password string) error {
	_, err := p.submit(ctx, func() (string, error) {
		return "", bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	})
	return err
}

// Close shuts the pool down after in-flight jobs finish. Callers must
// not submit new jobs after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.jobs)
		p.wg.Wait()
	})
}

func (p *Pool) submit(ctx context.Context, run func() (string, error)) (string, error) {
	j := job{run: run, done: make(chan result, 1)}

	select {
	case p.jobs <- j:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	select {
	case res := <-j.done:
		return res.value, res.err
	case <-ctx.Done():
		// The worker still finishes the job; the buffered channel lets
		// its result be dropped without blocking.
		return "", ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		value, err := j.run()
		j.done <- result{value: value, err: err}
	}
}
