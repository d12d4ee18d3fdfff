package crawler

import (
	"sync"

	"github.com/ternarybob/crawlkit/internal/models"
)

// Registry is the process-wide map of live crawls, grounded on the
// teacher's `services/crawler/service.go` `s.jobs map[string]*CrawlJob`
// back-reference (§9 Design Note "Back-references"). Every Crawl
// Controller operation goes through this registry rather than passing
// *CrawlState around by closure, so HTTP handlers polling crawl status
// can find a crawl by ID without the controller that started it.
type Registry struct {
	mu     sync.RWMutex
	crawls map[string]*models.CrawlState
}

func NewRegistry() *Registry {
	return &Registry{crawls: make(map[string]*models.CrawlState)}
}

func (r *Registry) Put(state *models.CrawlState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.crawls[state.ID] = state
}

func (r *Registry) Get(id string) (*models.CrawlState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.crawls[id]
	return s, ok
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.crawls, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.crawls)
}
