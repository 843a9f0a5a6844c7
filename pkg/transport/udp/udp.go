package udp

import (
	"fmt"
	"net"
	"time"

	"netbridge/pkg/transport"
)

// Проверка соответствия интерфейсу
var _ transport.Transport = (*Transport)(nil)

// Transport - тонкая обертка над UDP сокетом операционной системы.
// Своей буферизации нет: роль очереди играет буфер сокета в ядре.
// Сокетом владеет вызывающий код - Shutdown его не закрывает.
type Transport struct {
	conn *net.UDPConn
}

// New создает UDP транспорт поверх уже привязанного сокета.
func New(conn *net.UDPConn) *Transport {
	return &Transport{conn: conn}
}

// Bind привязывает новый сокет по адресу listenAddress (":0" - случайный
// порт) и возвращает транспорт поверх него вместе с самим сокетом.
func Bind(listenAddress string) (*Transport, *net.UDPConn, error) {
	if listenAddress == "" {
		listenAddress = ":0"
	}

	la, err := net.ResolveUDPAddr("udp", listenAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve listen address: %v", err)
	}

	conn, err := net.ListenUDP("udp", la)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bind udp socket: %v", err)
	}

	return New(conn), conn, nil
}

func (t *Transport) Name() string {
	return "udp"
}

// Init ничего не делает: создание и привязка сокета происходят снаружи.
func (t *Transport) Init() error {
	if t.conn == nil {
		return transport.ErrNotReady
	}
	return nil
}

// Shutdown ничего не делает: временем жизни сокета управляет владелец.
func (t *Transport) Shutdown() {}

// Send отправляет пакет напрямую через сокет. Результат ОС
// возвращается без преобразований.
func (t *Transport) Send(buf []byte, to *net.UDPAddr) (int, error) {
	if t.conn == nil {
		return 0, transport.ErrNotReady
	}

	return t.conn.WriteToUDP(buf, to)
}

// Poll всегда возвращает 1: у UDP сокета нет надежного способа узнать
// число ожидающих пакетов без чтения. 1 означает "данные возможно есть",
// достоверный ответ дает Recv.
func (t *Transport) Poll() int {
	if t.conn == nil {
		return 0
	}
	return 1
}

// Recv выполняет неблокирующее чтение: дедлайн ставится в "сейчас",
// и истекший таймаут трактуется как отсутствие данных (0, nil, nil).
func (t *Transport) Recv(buf []byte) (int, *net.UDPAddr, error) {
	if t.conn == nil {
		return 0, nil, transport.ErrNotReady
	}

	if err := t.conn.SetReadDeadline(time.Now()); err != nil {
		return 0, nil, err
	}

	n, from, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil, nil
		}
		return 0, nil, err
	}

	return n, from, nil
}
