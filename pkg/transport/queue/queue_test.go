package queue

import (
	"bytes"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netbridge/pkg/transport"
)

func testAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}
}

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(8)

	for i := 0; i < 5; i++ {
		payload := []byte(fmt.Sprintf("packet-%d", i))
		require.True(t, q.TryEnqueue(payload, testAddr(1000+i)))
	}

	assert.Equal(t, 5, q.Available())

	buf := make([]byte, transport.MaxPacketSize)
	for i := 0; i < 5; i++ {
		n, from, err := q.TryDequeue(buf)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("packet-%d", i), string(buf[:n]))
		assert.Equal(t, 1000+i, from.Port)
	}

	assert.Equal(t, 0, q.Available())
}

func TestDequeueEmpty(t *testing.T) {
	q := New(4)

	buf := make([]byte, 64)
	n, from, err := q.TryDequeue(buf)

	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, from)
}

func TestEnqueueRejectsInvalidSizes(t *testing.T) {
	q := New(4)

	assert.False(t, q.TryEnqueue(nil, testAddr(1)))
	assert.False(t, q.TryEnqueue([]byte{}, testAddr(1)))
	assert.False(t, q.TryEnqueue(make([]byte, transport.MaxPacketSize+1), testAddr(1)))
	assert.Equal(t, 0, q.Available())

	// Ровно максимальный размер еще проходит
	assert.True(t, q.TryEnqueue(make([]byte, transport.MaxPacketSize), testAddr(1)))
	assert.Equal(t, 1, q.Available())
}

// Сценарий из движка: 64 пакета по 100 байт заполняют очередь целиком,
// 65-й отбрасывается, принятые пакеты не перезаписываются.
func TestDropNewestWhenFull(t *testing.T) {
	q := New(64)

	for i := 0; i < 64; i++ {
		payload := make([]byte, 100)
		payload[0] = byte(i)
		require.True(t, q.TryEnqueue(payload, testAddr(i)), "packet %d must be accepted", i)
	}
	require.Equal(t, 64, q.Available())

	extra := make([]byte, 100)
	extra[0] = 0xFF
	assert.False(t, q.TryEnqueue(extra, testAddr(999)))
	assert.Equal(t, 64, q.Available())

	// Содержимое не изменилось: первым выходит самый старый пакет
	buf := make([]byte, 128)
	n, from, err := q.TryDequeue(buf)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, byte(0), buf[0])
	assert.Equal(t, 0, from.Port)
}

// Пакет больше буфера получателя удаляется целиком и сигналится как
// ErrTooLarge, буфер не трогается.
func TestOversizedPacketDiscarded(t *testing.T) {
	q := New(4)

	big := make([]byte, 100)
	for i := range big {
		big[i] = 0xAB
	}
	require.True(t, q.TryEnqueue(big, testAddr(7)))
	require.True(t, q.TryEnqueue([]byte("small"), testAddr(8)))
	require.Equal(t, 2, q.Available())

	buf := make([]byte, 50)
	marker := bytes.Repeat([]byte{0xEE}, 50)
	copy(buf, marker)

	n, from, err := q.TryDequeue(buf)
	assert.ErrorIs(t, err, transport.ErrTooLarge)
	assert.Zero(t, n)
	assert.Nil(t, from)
	assert.Equal(t, marker, buf, "buffer must be left unmodified")
	assert.Equal(t, 1, q.Available())

	// Следующий пакет читается нормально
	n, from, err = q.TryDequeue(buf)
	require.NoError(t, err)
	assert.Equal(t, "small", string(buf[:n]))
	assert.Equal(t, 8, from.Port)
}

func TestWrapAround(t *testing.T) {
	q := New(4)
	buf := make([]byte, 64)

	// Несколько полных оборотов кольца
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			payload := []byte(fmt.Sprintf("r%d-p%d", round, i))
			require.True(t, q.TryEnqueue(payload, testAddr(i)))
		}
		for i := 0; i < 3; i++ {
			n, _, err := q.TryDequeue(buf)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("r%d-p%d", round, i), string(buf[:n]))
		}
	}

	assert.Equal(t, 0, q.Available())
}

func TestReset(t *testing.T) {
	q := New(4)

	require.True(t, q.TryEnqueue([]byte("one"), testAddr(1)))
	require.True(t, q.TryEnqueue([]byte("two"), testAddr(2)))
	require.Equal(t, 2, q.Available())

	q.Reset()
	assert.Equal(t, 0, q.Available())

	buf := make([]byte, 64)
	n, from, err := q.TryDequeue(buf)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, from)

	// Очередь остается рабочей после Reset
	require.True(t, q.TryEnqueue([]byte("three"), testAddr(3)))
	n, _, err = q.TryDequeue(buf)
	require.NoError(t, err)
	assert.Equal(t, "three", string(buf[:n]))
}

// Продюсер и консюмер из разных горутин: счетчик не выходит за границы,
// все доставленные пакеты целы и в порядке отправки.
func TestConcurrentProducerConsumer(t *testing.T) {
	q := New(16)

	const total = 5000
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			payload := []byte(fmt.Sprintf("%08d", i))
			// Переполнение допустимо - это штатный drop-newest
			q.TryEnqueue(payload, testAddr(1))
		}
	}()

	var received []string
	done := make(chan struct{})

	go func() {
		defer close(done)
		buf := make([]byte, 64)
		idle := 0
		for idle < 200 {
			avail := q.Available()
			require.GreaterOrEqual(t, avail, 0)
			require.LessOrEqual(t, avail, q.Capacity())

			n, _, err := q.TryDequeue(buf)
			require.NoError(t, err)
			if n == 0 {
				idle++
				time.Sleep(100 * time.Microsecond)
				continue
			}
			idle = 0
			received = append(received, string(buf[:n]))
		}
	}()

	wg.Wait()
	<-done

	// FIFO: номера доставленных пакетов строго возрастают
	prev := -1
	for _, s := range received {
		var seq int
		_, err := fmt.Sscanf(s, "%d", &seq)
		require.NoError(t, err)
		require.Greater(t, seq, prev, "packets must arrive in accepted order")
		prev = seq
	}
}
