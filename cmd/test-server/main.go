package main

import (
	"log"
	"time"

	"netbridge/internal/config"
	"netbridge/internal/server"
	"netbridge/pkg/channel"
	"netbridge/pkg/storage"
	"netbridge/pkg/transport"
	"netbridge/pkg/transport/registry"
	"netbridge/pkg/transport/udp"
)

// Тестовый эхо-сервер: отвечает тем же пакетом через текущий транспорт.
// UDP работает сразу, WebRTC - после обмена offer/answer через
// /api/signal/offer. Эхо-циклу все равно, какой бэкенд активен.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Предупреждение: не удалось загрузить .env файл: %v", err)
	}

	db, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Ошибка инициализации хранилища: %v", err)
	}
	defer db.Close()

	udpTransport, conn, err := udp.Bind(cfg.UDPListenAddr)
	if err != nil {
		log.Fatalf("Ошибка привязки UDP сокета: %v", err)
	}
	defer conn.Close()

	log.Printf("Эхо-сервер слушает UDP на %s", conn.LocalAddr())

	reg := registry.New(udpTransport)
	if err := reg.Current().Init(); err != nil {
		log.Fatalf("Ошибка инициализации транспорта: %v", err)
	}

	channels := channel.NewChannelManager(cfg.ICEServers, reg)

	// HTTP сигналинг в отдельной горутине
	go func() {
		addr := ":" + cfg.ServerPort
		srv := server.New(channels, reg, db)
		if err := srv.Start(addr); err != nil {
			log.Fatalf("Ошибка запуска сигналинг сервера: %v", err)
		}
	}()

	log.Printf("Сигналинг доступен на http://localhost:%s/api/signal/offer", cfg.ServerPort)

	echoLoop(reg)
}

// echoLoop крутит Poll/Recv/Send по текущему транспорту
func echoLoop(reg *registry.Registry) {
	buf := make([]byte, transport.MaxPacketSize)

	for {
		t := reg.Current()

		if t.Poll() == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		n, from, err := t.Recv(buf)
		if err != nil {
			log.Printf("Ошибка приема (%s): %v", t.Name(), err)
			continue
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}

		if _, err := t.Send(buf[:n], from); err != nil {
			log.Printf("Ошибка отправки эха (%s): %v", t.Name(), err)
		}
	}
}
