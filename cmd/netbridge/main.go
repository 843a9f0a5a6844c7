package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"netbridge/internal/config"
	"netbridge/pkg/channel"
	"netbridge/pkg/discovery"
	"netbridge/pkg/probe"
	"netbridge/pkg/storage"
	"netbridge/pkg/transport/registry"
	"netbridge/pkg/transport/udp"
)

func main() {
	log.Println("Запуск netbridge клиента...")

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Предупреждение: не удалось загрузить .env файл (%v), используются значения по умолчанию", err)
	}

	// Инициализация хранилища
	log.Printf("Подключение к БД: %s", cfg.DatabaseURL)
	db, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Ошибка инициализации хранилища: %v", err)
	}
	defer db.Close()

	// UDP транспорт по умолчанию: клиенту хватает случайного порта
	udpTransport, conn, err := udp.Bind(":0")
	if err != nil {
		log.Fatalf("Ошибка привязки UDP сокета: %v", err)
	}
	defer conn.Close()

	log.Printf("UDP сокет привязан к %s", conn.LocalAddr())

	// Реестр транспортов: UDP как транспорт по умолчанию
	reg := registry.New(udpTransport)
	if err := reg.Current().Init(); err != nil {
		log.Fatalf("Ошибка инициализации транспорта: %v", err)
	}

	// Менеджер WebRTC каналов. Когда канал установится, его бэкенд сам
	// станет текущим транспортом - клиентский код ниже этого не заметит.
	channels := channel.NewChannelManager(cfg.ICEServers, reg)

	if cfg.SignalURL != "" {
		if err := dialChannel(channels, cfg.SignalURL); err != nil {
			log.Printf("WebRTC канал не установлен (%v), остаемся на UDP", err)
		}
	}

	// Обнаружение серверов в локальной сети
	discoveryManager, err := discovery.NewManager(cfg.DiscoveryService, conn.LocalAddr().(*net.UDPAddr).Port, db)
	if err != nil {
		log.Printf("Предупреждение: mDNS discovery не запустился: %v", err)
	} else {
		defer discoveryManager.Stop()
	}

	// Адрес сервера для замеров: аргумент командной строки или конфиг
	target := cfg.UDPListenAddr
	if len(os.Args) > 1 {
		target = os.Args[1]
	}

	serverAddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		log.Fatalf("Неверный адрес сервера %q: %v", target, err)
	}

	log.Printf("Замеры RTT до %s через текущий транспорт", serverAddr)

	prober := probe.New(reg, db)
	go prober.Run(context.Background(), serverAddr)

	log.Println("Для остановки нажмите Ctrl+C")

	// Бесконечный цикл для поддержания работы клиента
	select {}
}

// dialChannel выполняет обмен offer/answer через сигналинг сервер
func dialChannel(channels *channel.ChannelManager, signalURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	channelID, offer, err := channels.CreateOffer(ctx)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}

	body, err := json.Marshal(offer)
	if err != nil {
		return fmt.Errorf("marshal offer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signalURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		channels.CloseChannel(channelID)
		return fmt.Errorf("signaling request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		channels.CloseChannel(channelID)
		return fmt.Errorf("signaling server returned %s", resp.Status)
	}

	var answer channel.Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		channels.CloseChannel(channelID)
		return fmt.Errorf("decode answer: %w", err)
	}

	if err := channels.HandleAnswer(channelID, answer); err != nil {
		channels.CloseChannel(channelID)
		return fmt.Errorf("handle answer: %w", err)
	}

	log.Printf("WebRTC канал %s: сигналинг завершен, ждем открытия канала данных", channelID)
	return nil
}
