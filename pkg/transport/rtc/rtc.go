package rtc

import (
	"log"
	"net"
	"sync"

	"netbridge/pkg/transport"
	"netbridge/pkg/transport/queue"
)

// Проверка соответствия интерфейсу
var _ transport.Transport = (*Transport)(nil)

// Состояния бэкенда. Переходы только вперед:
// stateUninitialized -> stateReady -> stateShutdown
const (
	stateUninitialized = iota
	stateReady
	stateShutdown
)

// ChannelSender - исходящая сторона внешнего канала (WebRTC DataChannel).
// Сигналинг и установление соединения живут снаружи, транспорту нужен
// только готовый канал.
type ChannelSender interface {
	// Ready сообщает, открыт ли канал для передачи.
	Ready() bool

	// SendMessage отправляет одно сообщение и возвращает число принятых
	// каналом байт.
	SendMessage(data []byte) (int, error)
}

// PeerAddr возвращает синтетический адрес единственного пира канала.
// У DataChannel нет адресации на уровне пакетов, а соединение всегда
// точка-точка, поэтому каждый входящий пакет помечается этим
// фиксированным адресом. Протокольный код выше опирается на то, что
// адрес один и тот же для всех пакетов.
func PeerAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 27015}
}

// Transport - асинхронный бэкенд поверх внешнего канала. Пакеты приходят
// колбэком Push из чужой горутины, складываются в ограниченную очередь
// и забираются игровым циклом через Poll/Recv. Очередь - единственная
// точка синхронизации между продюсером и консюмером.
type Transport struct {
	mu     sync.Mutex
	state  int
	sender ChannelSender
	queue  *queue.PacketQueue
}

// New создает бэкенд поверх sender. До Init транспорт не готов.
func New(sender ChannelSender) *Transport {
	return &Transport{
		sender: sender,
		queue:  queue.New(queue.DefaultCapacity),
	}
}

func (t *Transport) Name() string {
	return "webrtc"
}

// Init проверяет готовность внешнего канала и очищает очередь.
// Если канал не готов, состояние не меняется и возвращается ErrNotReady.
// Init не регистрирует транспорт в Registry - это отдельный шаг
// колбэка готовности (см. pkg/channel).
func (t *Transport) Init() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sender == nil || !t.sender.Ready() {
		log.Printf("webrtc: канал не готов, транспорт не инициализирован")
		return transport.ErrNotReady
	}

	t.queue.Reset()
	t.state = stateReady

	log.Printf("webrtc: транспорт инициализирован")
	return nil
}

// Shutdown переводит бэкенд в конечное состояние и очищает очередь.
// Повторный вызов безопасен и наблюдаемого эффекта не имеет.
func (t *Transport) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = stateShutdown
	t.queue.Reset()
}

func (t *Transport) ready() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state == stateReady
}

// Send передает пакет в исходящий примитив канала. Адрес to игнорируется:
// у канала ровно один пир. Если канал принял меньше байт, чем запрошено,
// отправка считается неуспешной целиком.
func (t *Transport) Send(buf []byte, to *net.UDPAddr) (int, error) {
	if !t.ready() {
		return 0, transport.ErrNotReady
	}

	n, err := t.sender.SendMessage(buf)
	if err != nil {
		return 0, err
	}

	if n != len(buf) {
		log.Printf("webrtc: короткая запись, запрошено %d байт, отправлено %d", len(buf), n)
		return 0, transport.ErrShortWrite
	}

	return n, nil
}

// Poll возвращает число пакетов в очереди, 0 если транспорт не готов.
func (t *Transport) Poll() int {
	if !t.ready() {
		return 0
	}

	return t.queue.Available()
}

// Recv забирает самый старый пакет из очереди. Пустая очередь - не
// ошибка: возвращается (0, nil, nil).
func (t *Transport) Recv(buf []byte) (int, *net.UDPAddr, error) {
	if !t.ready() {
		return 0, nil, transport.ErrNotReady
	}

	return t.queue.TryDequeue(buf)
}

// Push - внешняя точка входа продюсера: ее зовет колбэк канала из своей
// горутины в произвольный момент. Ошибок наружу нет - у продюсера нет
// обратного канала для backpressure, любой негодный или лишний пакет
// молча отбрасывается с диагностикой в лог.
func (t *Transport) Push(data []byte) {
	if !t.ready() {
		log.Printf("webrtc: пакет получен до инициализации, отброшен")
		return
	}

	if len(data) == 0 || len(data) > transport.MaxPacketSize {
		log.Printf("webrtc: неверный размер пакета %d, отброшен", len(data))
		return
	}

	if !t.queue.TryEnqueue(data, PeerAddr()) {
		log.Printf("webrtc: очередь полна, пакет %d байт отброшен", len(data))
	}
}
