package transport

import (
	"errors"
	"net"
)

// MaxPacketSize - максимальный размер одной датаграммы, который обязан
// принимать любой транспорт. Пакеты длиннее отбрасываются на входе.
const MaxPacketSize = 2048

var (
	// ErrNotReady возвращается, если операция вызвана до успешного Init()
	// или после Shutdown().
	ErrNotReady = errors.New("transport: not ready")

	// ErrTooLarge возвращается из Recv, когда очередной пакет не помещается
	// в буфер получателя. Пакет при этом уже удален из очереди.
	ErrTooLarge = errors.New("transport: packet too large for buffer")

	// ErrShortWrite возвращается из Send, если канал принял меньше байт,
	// чем было запрошено. Частичная отправка не считается успехом.
	ErrShortWrite = errors.New("transport: short write")
)

// Transport определяет общий интерфейс для всех способов доставки датаграмм
// (UDP, WebRTC). Весь сетевой код движка работает только через него -
// бэкенды подменяются в Registry без изменения вызывающего кода.
type Transport interface {
	// Name возвращает название транспорта (например, "udp", "webrtc")
	Name() string

	// Init подготавливает транспорт к работе. До успешного Init
	// Send/Recv обязаны возвращать ErrNotReady.
	Init() error

	// Shutdown останавливает транспорт. Повторный вызов безопасен.
	Shutdown()

	// Send отправляет один пакет по адресу to.
	// Возвращает число отправленных байт или ошибку.
	Send(buf []byte, to *net.UDPAddr) (int, error)

	// Poll сообщает, сколько пакетов доступно для чтения.
	// Значение консультативное: для UDP это константа 1 ("возможно есть
	// данные"), достоверный ответ дает только Recv.
	Poll() int

	// Recv читает один пакет в buf. Не блокируется: если данных нет,
	// возвращает (0, nil, nil). Ошибка означает сбой транспорта либо
	// ErrTooLarge, если пакет не поместился в buf.
	Recv(buf []byte) (int, *net.UDPAddr, error)
}
