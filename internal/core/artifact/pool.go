package artifact

import "sync"

// Pool collects build results per vertex for the duration of one run.
// Parameter binding reads predecessor outputs from here; planning order
// guarantees a referenced vertex has already written its result.
type Pool struct {
	mu      sync.RWMutex
	results map[string]*BuildResult
}

// NewPool creates an empty result pool.
func NewPool() *Pool {
	return &Pool{results: make(map[string]*BuildResult)}
}

// Set stores the result for a vertex, replacing any previous one.
func (p *Pool) Set(vertexID string, result *BuildResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results[vertexID] = result
}

// Get retrieves the result for a vertex.
func (p *Pool) Get(vertexID string) (*BuildResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.results[vertexID]
	return r, ok
}

// Output retrieves a named output of a vertex in one step.
func (p *Pool) Output(vertexID, name string) (interface{}, bool) {
	r, ok := p.Get(vertexID)
	if !ok {
		return nil, false
	}
	return r.Output(name)
}

// Len returns the number of stored results.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.results)
}
