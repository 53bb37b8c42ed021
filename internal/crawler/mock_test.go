package crawler

import (
	"context"
	"fmt"
	"sync"
)

// MockFetcher serves canned pages keyed by page URL
type MockFetcher struct {
	mu     sync.Mutex
	pages  map[string]*Page
	fail   map[string]error
	called []string
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		pages: make(map[string]*Page),
		fail:  make(map[string]error),
	}
}

func (m *MockFetcher) Name() string {
	return "mock"
}

func (m *MockFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.called = append(m.called, url)
	if err, ok := m.fail[url]; ok {
		return nil, err
	}
	if page, ok := m.pages[url]; ok {
		return page, nil
	}
	return nil, fmt.Errorf("no page for %s", url)
}

func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.called...)
}

// MockErrorLog records page failures
type MockErrorLog struct {
	errors []string
}

func (m *MockErrorLog) LogError(source string, err error) {
	m.errors = append(m.errors, source+": "+err.Error())
}

func (m *MockErrorLog) LogInfo(format string, args ...interface{}) {}
