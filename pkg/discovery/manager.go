package discovery

import (
	"log"
	"sync"
	"time"

	"netbridge/pkg/storage"
)

// Manager связывает mDNS discovery с хранилищем: найденные серверы
// периодически записываются в список известных серверов.
type Manager struct {
	discovery    *ServiceDiscovery
	store        *storage.Storage
	updateTicker *time.Ticker
	stopChan     chan struct{}
	mu           sync.Mutex
}

func NewManager(serviceName string, port int, store *storage.Storage) (*Manager, error) {
	discovery := New(serviceName, port)

	manager := &Manager{
		discovery:    discovery,
		store:        store,
		updateTicker: time.NewTicker(15 * time.Second),
		stopChan:     make(chan struct{}),
	}

	if err := discovery.Start(); err != nil {
		return nil, err
	}

	go manager.autoUpdate()

	return manager, nil
}

// Stop останавливает обнаружение
func (m *Manager) Stop() {
	m.updateTicker.Stop()
	close(m.stopChan)
	m.discovery.Stop()
}

// Servers возвращает актуальный список обнаруженных серверов
func (m *Manager) Servers() []string {
	return m.discovery.GetServers()
}

// autoUpdate периодически сбрасывает найденные серверы в хранилище
func (m *Manager) autoUpdate() {
	for {
		select {
		case <-m.stopChan:
			return
		case <-m.updateTicker.C:
			m.persistServers()
		}
	}
}

// persistServers записывает обнаруженные серверы в БД
func (m *Manager) persistServers() {
	m.mu.Lock()
	defer m.mu.Unlock()

	discovered := m.discovery.GetServers()
	if len(discovered) == 0 {
		return
	}

	log.Printf("Discovered %d servers: %v", len(discovered), discovered)

	now := time.Now()
	for _, addr := range discovered {
		err := m.store.SaveServer(storage.Server{
			Address:   addr,
			Name:      "lan",
			Transport: "udp",
			LastSeen:  now,
		})
		if err != nil {
			log.Printf("Failed to persist server %s: %v", addr, err)
		}
	}
}
