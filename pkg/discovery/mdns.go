package discovery

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceDiscovery находит игровые серверы в локальной сети через mDNS
// и анонсирует собственный сервер, если он запущен.
type ServiceDiscovery struct {
	serviceName string
	port        int
	servers     map[string]string // имя сервиса -> host:port
	mu          sync.RWMutex
	stopChan    chan struct{}
	mdnsServer  *mdns.Server
}

func New(serviceName string, port int) *ServiceDiscovery {
	return &ServiceDiscovery{
		serviceName: serviceName,
		port:        port,
		servers:     make(map[string]string),
		stopChan:    make(chan struct{}),
	}
}

// Start запускает анонс нашего UDP порта и периодический поиск серверов
func (sd *ServiceDiscovery) Start() error {
	localIP, err := getLocalIP()
	if err != nil {
		return fmt.Errorf("failed to get local IP: %v", err)
	}

	if err := sd.advertiseService(localIP); err != nil {
		return fmt.Errorf("failed to advertise service: %v", err)
	}

	go sd.discoverServers()

	log.Printf("mDNS discovery started. Service: %s, Port: %d", sd.serviceName, sd.port)
	return nil
}

// Stop останавливает обнаружение и снимает анонс
func (sd *ServiceDiscovery) Stop() {
	close(sd.stopChan)

	if sd.mdnsServer != nil {
		sd.mdnsServer.Shutdown()
	}
}

// GetServers возвращает список обнаруженных серверов (host:port)
func (sd *ServiceDiscovery) GetServers() []string {
	sd.mu.RLock()
	defer sd.mu.RUnlock()

	servers := make([]string, 0, len(sd.servers))
	for _, addr := range sd.servers {
		servers = append(servers, addr)
	}
	return servers
}

// advertiseService анонсирует наш игровой сервер через mDNS
func (sd *ServiceDiscovery) advertiseService(ip string) error {
	service, err := mdns.NewMDNSService(
		"netbridge",
		sd.serviceName,
		"",
		"",
		sd.port,
		[]net.IP{net.ParseIP(ip)},
		[]string{"txtv=1", "type=gameserver"},
	)
	if err != nil {
		return err
	}

	server, err := mdns.NewServer(&mdns.Config{
		Zone: service,
	})
	if err != nil {
		return err
	}

	// Сервер живет до Stop()
	sd.mdnsServer = server

	return nil
}

// discoverServers периодически ищет серверы в сети
func (sd *ServiceDiscovery) discoverServers() {
	entries := make(chan *mdns.ServiceEntry)

	params := mdns.QueryParam{
		Service:             sd.serviceName,
		Domain:              "local",
		Timeout:             10 * time.Second,
		Entries:             entries,
		WantUnicastResponse: false,
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-sd.stopChan:
			return
		case <-ticker.C:
			go func() {
				if err := mdns.Query(&params); err != nil {
					log.Printf("mDNS query error: %v", err)
				}
			}()
		case entry := <-entries:
			if entry.AddrV4 != nil {
				serverAddr := fmt.Sprintf("%s:%d", entry.AddrV4.String(), entry.Port)

				sd.mu.Lock()
				sd.servers[entry.Name] = serverAddr
				sd.mu.Unlock()

				log.Printf("Discovered server: %s (%s)", entry.Name, serverAddr)
			}
		}
	}
}

// getLocalIP возвращает локальный IP адрес
func getLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ipnet.IP.To4() != nil {
				return ipnet.IP.String(), nil
			}
		}
	}

	return "", fmt.Errorf("no local IP found")
}
