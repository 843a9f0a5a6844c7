package registry

import (
	"log"
	"sync"

	"netbridge/pkg/transport"
)

// Registry хранит единственный "текущий" транспорт процесса и умеет
// атомарно переключать его. Весь игровой код ходит в сеть только через
// Current() - при переключении бэкенда места вызова не меняются.
//
// Registry - не глобальная переменная: объект создается на старте и
// передается тем подсистемам, которым он нужен. Так порядок
// инициализации и тестируемость остаются явными.
type Registry struct {
	mu      sync.Mutex
	current transport.Transport
	def     transport.Transport
}

// New создает реестр с def в качестве транспорта по умолчанию
// (обычно это UDP).
func New(def transport.Transport) *Registry {
	return &Registry{def: def}
}

// Current возвращает активный транспорт. Если SetCurrent еще ни разу
// не вызывался, привязывает и возвращает транспорт по умолчанию.
func (r *Registry) Current() transport.Transport {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		r.current = r.def
	}

	return r.current
}

// SetCurrent делает t активным транспортом и возвращает предыдущий.
// Передача nil - no-op: текущий транспорт не меняется и возвращается
// как есть. Init() у нового транспорта не вызывается - это обязанность
// вызывающего кода.
func (r *Registry) SetCurrent(t transport.Transport) transport.Transport {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current
	if prev == nil {
		prev = r.def
	}

	if t == nil {
		return prev
	}

	log.Printf("Переключение на транспорт %s", t.Name())
	r.current = t

	return prev
}

// Default возвращает транспорт по умолчанию независимо от того,
// какой сейчас активен. Используется для явного отката и в тестах.
func (r *Registry) Default() transport.Transport {
	return r.def
}
