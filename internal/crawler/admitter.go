package crawler

import "sync"

// Admitter enforces §4.G's three concurrency caps — global, per-crawl,
// per-host — ahead of the worker pool dispatching a job's handler.
// Implements queue.Admitter without importing internal/queue, so the
// queue package stays agnostic of crawl-specific admission policy.
type Admitter struct {
	mu     sync.Mutex
	global chan struct{}

	perCrawlMax int
	perHostMax  int
	crawlInUse  map[string]int
	hostInUse   map[string]int
}

func NewAdmitter(globalMax, perCrawlMax, perHostMax int) *Admitter {
	if globalMax <= 0 {
		globalMax = 1
	}
	return &Admitter{
		global:      make(chan struct{}, globalMax),
		perCrawlMax: perCrawlMax,
		perHostMax:  perHostMax,
		crawlInUse:  make(map[string]int),
		hostInUse:   make(map[string]int),
	}
}

// TryAdmit reserves one global slot plus, if crawlID/host are non-empty,
// one slot within that crawl's and that host's own cap. It never blocks —
// callers that can't admit right now should retry the job later rather
// than hold a worker goroutine hostage waiting for capacity.
func (a *Admitter) TryAdmit(crawlID, host string) (release func(), ok bool) {
	select {
	case a.global <- struct{}{}:
	default:
		return nil, false
	}

	a.mu.Lock()
	if a.perCrawlMax > 0 && crawlID != "" && a.crawlInUse[crawlID] >= a.perCrawlMax {
		a.mu.Unlock()
		<-a.global
		return nil, false
	}
	if a.perHostMax > 0 && host != "" && a.hostInUse[host] >= a.perHostMax {
		a.mu.Unlock()
		<-a.global
		return nil, false
	}
	if crawlID != "" {
		a.crawlInUse[crawlID]++
	}
	if host != "" {
		a.hostInUse[host]++
	}
	a.mu.Unlock()

	released := false
	return func() {
		a.mu.Lock()
		if released {
			a.mu.Unlock()
			return
		}
		released = true
		if crawlID != "" {
			a.crawlInUse[crawlID]--
			if a.crawlInUse[crawlID] <= 0 {
				delete(a.crawlInUse, crawlID)
			}
		}
		if host != "" {
			a.hostInUse[host]--
			if a.hostInUse[host] <= 0 {
				delete(a.hostInUse, host)
			}
		}
		a.mu.Unlock()
		<-a.global
	}, true
}
