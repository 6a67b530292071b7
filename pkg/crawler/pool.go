package crawler

import "golang.org/x/sync/errgroup"

// pool runs jobs on a fixed set of goroutines that live for the whole crawl.
type pool struct {
	jobs chan func()
	g    errgroup.Group
}

func newPool(size int) *pool {
	if size < 1 {
		size = 1
	}
	p := &pool{jobs: make(chan func())}
	for i := 0; i < size; i++ {
		p.g.Go(func() error {
			for job := range p.jobs {
				job()
			}
			return nil
		})
	}
	return p
}

// Submit blocks until a worker picks the job up.
func (p *pool) Submit(job func()) {
	p.jobs <- job
}

// Close stops accepting jobs and waits for the running ones.
func (p *pool) Close() {
	close(p.jobs)
	_ = p.g.Wait()
}
