package registry

import (
	"io"
	"log"
	"net"
	"os"
	"sync"
	"testing"

	"netbridge/pkg/transport"
)

// fakeTransport - минимальная заглушка для проверки переключения
type fakeTransport struct {
	name string
}

func (f *fakeTransport) Name() string { return f.name }
func (f *fakeTransport) Init() error  { return nil }
func (f *fakeTransport) Shutdown()    {}
func (f *fakeTransport) Poll() int    { return 0 }
func (f *fakeTransport) Send(buf []byte, to *net.UDPAddr) (int, error) {
	return len(buf), nil
}
func (f *fakeTransport) Recv(buf []byte) (int, *net.UDPAddr, error) {
	return 0, nil, nil
}

var _ transport.Transport = (*fakeTransport)(nil)

func TestCurrentDefaultsLazily(t *testing.T) {
	def := &fakeTransport{name: "udp"}
	reg := New(def)

	// Свежий реестр без SetCurrent отдает транспорт по умолчанию
	if got := reg.Current(); got != def {
		t.Fatalf("expected default transport, got %v", got.Name())
	}
}

func TestSetCurrentReturnsPrevious(t *testing.T) {
	def := &fakeTransport{name: "udp"}
	a := &fakeTransport{name: "a"}
	b := &fakeTransport{name: "b"}
	reg := New(def)

	prev := reg.SetCurrent(a)
	if prev != def {
		t.Errorf("expected default as previous, got %v", prev.Name())
	}

	prev = reg.SetCurrent(b)
	if prev != a {
		t.Errorf("expected a as previous, got %v", prev.Name())
	}

	if reg.Current() != b {
		t.Errorf("expected b to be current, got %v", reg.Current().Name())
	}
}

func TestSetCurrentNilIsNoop(t *testing.T) {
	def := &fakeTransport{name: "udp"}
	a := &fakeTransport{name: "a"}
	reg := New(def)
	reg.SetCurrent(a)

	prev := reg.SetCurrent(nil)
	if prev != a {
		t.Errorf("expected unchanged current as result, got %v", prev.Name())
	}
	if reg.Current() != a {
		t.Errorf("nil must not replace current transport")
	}
}

func TestDefaultIgnoresCurrent(t *testing.T) {
	def := &fakeTransport{name: "udp"}
	a := &fakeTransport{name: "a"}
	reg := New(def)
	reg.SetCurrent(a)

	if reg.Default() != def {
		t.Errorf("Default must return the default transport regardless of current")
	}
}

// Параллельные чтения и переключения не должны ронять гонку:
// запускать с -race
func TestConcurrentSwitch(t *testing.T) {
	// Глушим диагностику переключений, иначе лог утонет
	log.SetOutput(io.Discard)
	defer log.SetOutput(os.Stderr)

	def := &fakeTransport{name: "udp"}
	a := &fakeTransport{name: "a"}
	reg := New(def)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				reg.SetCurrent(a)
				reg.SetCurrent(def)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if cur := reg.Current(); cur != a && cur != def {
					t.Errorf("observed torn transport pointer")
					return
				}
			}
		}()
	}
	wg.Wait()
}
