package main

import (
	"log"
	"sync"

	"github.com/sweeney/cover-controller/internal/config"
)

// configAdmin exposes the config file to the web server. Saves go to
// disk; reloads are queued for the control loop.
type configAdmin struct {
	path    string
	reloads chan struct{}

	mu      sync.Mutex
	current *config.Config
}

func newConfigAdmin(path string, cfg *config.Config) *configAdmin {
	return &configAdmin{
		path:    path,
		reloads: make(chan struct{}, 1),
		current: cfg,
	}
}

// ConfigYAML returns the effective configuration, flag overrides included.
func (a *configAdmin) ConfigYAML() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return config.Marshal(a.current)
}

// SaveConfig validates and writes data, then requests a reload.
func (a *configAdmin) SaveConfig(data []byte) error {
	if _, err := config.Save(a.path, data); err != nil {
		return err
	}
	log.Printf("config: saved %s", a.path)
	a.RequestReload()
	return nil
}

// RequestReload never blocks; a pending request already covers this one.
func (a *configAdmin) RequestReload() {
	select {
	case a.reloads <- struct{}{}:
	default:
	}
}

func (a *configAdmin) setCurrent(cfg *config.Config) {
	a.mu.Lock()
	a.current = cfg
	a.mu.Unlock()
}
