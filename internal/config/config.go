package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort    string
	UDPListenAddr string
	DatabaseURL   string

	// WebRTC
	ICEServers []string
	SignalURL  string

	// mDNS discovery
	DiscoveryService string
}

func Load() (*Config, error) {
	// Загружаем .env файл, если он существует
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:       getEnv("SERVER_PORT", "8081"),
		UDPListenAddr:    getEnv("UDP_LISTEN_ADDR", ":27015"),
		DatabaseURL:      getEnv("DATABASE_URL", "./netbridge.db"),
		ICEServers:       splitList(getEnv("ICE_SERVERS", "stun:stun.l.google.com:19302")),
		SignalURL:        getEnv("SIGNAL_URL", ""),
		DiscoveryService: getEnv("DISCOVERY_SERVICE", "_netbridge._udp"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
