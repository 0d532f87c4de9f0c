package job

import "fmt"

// Registry is the ordered collection of jobs, in declaration order.
type Registry struct {
	jobs []*Job
}

// NewRegistry builds every job from its declaration. Any invalid
// declaration fails the whole registry.
func NewRegistry(specs []Spec) (*Registry, error) {
	r := &Registry{jobs: make([]*Job, 0, len(specs))}
	for i, spec := range specs {
		j, err := New(spec)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i+1, err)
		}
		r.jobs = append(r.jobs, j)
	}
	return r, nil
}

// Jobs returns the jobs in declaration order.
func (r *Registry) Jobs() []*Job {
	return r.jobs
}

func (r *Registry) Len() int {
	return len(r.jobs)
}

// AnyRunning reports whether at least one job has a live process.
func (r *Registry) AnyRunning() bool {
	for _, j := range r.jobs {
		if j.Running() {
			return true
		}
	}
	return false
}

// Running returns the jobs that have a live process, in declaration order.
func (r *Registry) Running() []*Job {
	var out []*Job
	for _, j := range r.jobs {
		if j.Running() {
			out = append(out, j)
		}
	}
	return out
}
