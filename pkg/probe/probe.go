package probe

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"netbridge/pkg/storage"
	"netbridge/pkg/transport"
	"netbridge/pkg/transport/registry"
)

// Prober замеряет RTT до сервера эхо-пакетами. Он нарочно ничего не
// знает о бэкендах: все уходит через registry.Current(), так что один
// и тот же код меряет и UDP, и WebRTC - демонстрация того, что места
// вызова от транспорта не зависят.
type Prober struct {
	registry *registry.Registry
	store    *storage.Storage
	interval time.Duration
	mu       sync.Mutex
	seq      uint32
}

func New(reg *registry.Registry, store *storage.Storage) *Prober {
	return &Prober{
		registry: reg,
		store:    store,
		interval: 3 * time.Second,
	}
}

// Ping отправляет один эхо-пакет на addr через текущий транспорт и ждет
// ответ с тем же содержимым. Recv неблокирующий, поэтому ответ
// опрашивается через Poll/Recv с короткими паузами до истечения ctx.
func (p *Prober) Ping(ctx context.Context, addr *net.UDPAddr) (time.Duration, error) {
	p.mu.Lock()
	p.seq++
	payload := []byte(fmt.Sprintf("netbridge-probe %d %d", p.seq, time.Now().UnixNano()))
	p.mu.Unlock()

	t := p.registry.Current()

	start := time.Now()
	if _, err := t.Send(payload, addr); err != nil {
		return 0, fmt.Errorf("probe send failed: %w", err)
	}

	buf := make([]byte, transport.MaxPacketSize)
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		if t.Poll() > 0 {
			n, _, err := t.Recv(buf)
			if err != nil {
				return 0, fmt.Errorf("probe recv failed: %w", err)
			}
			if n > 0 && bytes.Equal(buf[:n], payload) {
				return time.Since(start), nil
			}
			// Чужой пакет - не наш ответ, пропускаем
			if n > 0 {
				continue
			}
		}

		time.Sleep(5 * time.Millisecond)
	}
}

// Run гоняет Ping по таймеру до отмены ctx и пишет замеры в хранилище
func (p *Prober) Run(ctx context.Context, addr *net.UDPAddr) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, p.interval)
			rtt, err := p.Ping(pingCtx, addr)
			cancel()

			name := p.registry.Current().Name()

			if err != nil {
				log.Printf("Probe %s via %s failed: %v", addr, name, err)
				continue
			}

			log.Printf("Probe %s via %s: rtt=%s", addr, name, rtt)

			if p.store == nil {
				continue
			}

			err = p.store.SaveSample(storage.Sample{
				Address:   addr.String(),
				Transport: name,
				RTT:       rtt,
				Taken:     time.Now(),
			})
			if err != nil {
				log.Printf("Failed to save probe sample: %v", err)
			}
		}
	}
}
