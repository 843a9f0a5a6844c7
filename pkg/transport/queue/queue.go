package queue

import (
	"net"
	"sync"

	"netbridge/pkg/transport"
)

// DefaultCapacity - размер кольца по умолчанию, как в движке.
const DefaultCapacity = 64

// packet - один слот кольцевого буфера. Память под данные выделяется
// один раз при создании очереди и дальше переиспользуется.
type packet struct {
	data   []byte
	length int
	from   *net.UDPAddr
}

// PacketQueue - кольцевой буфер фиксированной емкости для входящих пакетов.
// Продюсер (асинхронный колбэк канала) кладет пакеты через TryEnqueue,
// консюмер (игровой цикл) забирает через TryDequeue. Одна очередь - один
// продюсер и один консюмер, разделяемое состояние закрыто мьютексом.
//
// Политика переполнения - drop-newest: при полной очереди входящий пакет
// отбрасывается, уже принятые никогда не перезаписываются. Так самый
// старый пакет всегда доставляется первым, а верхняя граница "протухания"
// данных ограничена емкостью кольца.
type PacketQueue struct {
	mu    sync.Mutex
	slots []packet
	head  int
	tail  int
	count int
}

// New создает очередь на capacity пакетов размером до transport.MaxPacketSize.
func New(capacity int) *PacketQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	slots := make([]packet, capacity)
	for i := range slots {
		slots[i].data = make([]byte, transport.MaxPacketSize)
	}

	return &PacketQueue{slots: slots}
}

// Capacity возвращает емкость кольца.
func (q *PacketQueue) Capacity() int {
	return len(q.slots)
}

// Available возвращает число пакетов, готовых к чтению.
func (q *PacketQueue) Available() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.count
}

// TryEnqueue копирует пакет в хвост очереди. Возвращает false, если пакет
// пустой, больше transport.MaxPacketSize или очередь полна - в этих
// случаях пакет отброшен и состояние очереди не изменилось.
func (q *PacketQueue) TryEnqueue(data []byte, from *net.UDPAddr) bool {
	if len(data) == 0 || len(data) > transport.MaxPacketSize {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count >= len(q.slots) {
		return false
	}

	slot := &q.slots[q.tail]
	copy(slot.data, data)
	slot.length = len(data)
	slot.from = from

	q.tail = (q.tail + 1) % len(q.slots)
	q.count++

	return true
}

// TryDequeue копирует самый старый пакет в buf и возвращает его длину и
// адрес отправителя. Если очередь пуста, возвращает (0, nil, nil).
// Если пакет не помещается в buf, он удаляется из очереди целиком и
// возвращается transport.ErrTooLarge - частичная доставка запрещена,
// buf при этом не трогается.
func (q *PacketQueue) TryDequeue(buf []byte) (int, *net.UDPAddr, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return 0, nil, nil
	}

	slot := &q.slots[q.head]
	if slot.length > len(buf) {
		// Сдвигаем голову: негодный пакет все равно занимает место.
		q.head = (q.head + 1) % len(q.slots)
		q.count--
		return 0, nil, transport.ErrTooLarge
	}

	n := copy(buf, slot.data[:slot.length])
	from := slot.from

	q.head = (q.head + 1) % len(q.slots)
	q.count--

	return n, from, nil
}

// Reset логически опустошает очередь. Содержимое слотов не затирается -
// оно станет недостижимым и перезапишется при следующих TryEnqueue.
func (q *PacketQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.head = 0
	q.tail = 0
	q.count = 0
}
