package pack

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/javanhut/helio-vcs/internal/serial"
)

// Default number of workers for concurrent encoding
const DefaultWorkers = 8

// Job is one payload to encode. Result entries keep the job's index.
type Job struct {
	Type int
	ID   string
	Node *serial.Node
}

type encodeResult struct {
	index int
	obj   Object
	err   error
}

type encodeJob struct {
	index  int
	job    Job
	result chan<- encodeResult
}

// EncodePool encodes payloads on a fixed set of workers.
type EncodePool struct {
	workers int
	jobs    chan encodeJob
	wg      sync.WaitGroup
}

// NewEncodePool starts the workers. workers <= 0 picks min(NumCPU, DefaultWorkers).
func NewEncodePool(workers int) *EncodePool {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers > DefaultWorkers {
			workers = DefaultWorkers
		}
	}
	pool := &EncodePool{
		workers: workers,
		jobs:    make(chan encodeJob, workers*2),
	}
	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}
	return pool
}

func (p *EncodePool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		data, err := Encode(j.job.Node)
		j.result <- encodeResult{
			index: j.index,
			obj:   Object{Type: j.job.Type, ID: j.job.ID, Data: data},
			err:   err,
		}
	}
}

// Submit encodes every job and returns the objects in job order.
func (p *EncodePool) Submit(jobs []Job) ([]Object, error) {
	results := make(chan encodeResult, len(jobs))
	go func() {
		for i, j := range jobs {
			p.jobs <- encodeJob{index: i, job: j, result: results}
		}
	}()

	out := make([]Object, len(jobs))
	var firstErr error
	for range jobs {
		r := <-results
		if r.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("encode %s: %w", jobs[r.index].ID, r.err)
		}
		out[r.index] = r.obj
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// Close stops the workers.
func (p *EncodePool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// WriteBundleConcurrent encodes the jobs in parallel and bundles the results.
func WriteBundleConcurrent(jobs []Job, workers int) ([]byte, error) {
	pool := NewEncodePool(workers)
	defer pool.Close()
	objs, err := pool.Submit(jobs)
	if err != nil {
		return nil, fmt.Errorf("concurrent encoding failed: %w", err)
	}
	return WriteBundle(objs)
}
