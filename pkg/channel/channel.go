package channel

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"netbridge/pkg/transport/registry"
	"netbridge/pkg/transport/rtc"
)

// ChannelManager управляет WebRTC каналами данных. Он отвечает за
// сигналинг (offer/answer) и за привязку готового DataChannel к
// асинхронному транспорту: когда канал открывается, менеджер
// инициализирует бэкенд и делает его текущим в Registry. Это
// единственное место, где транспорт активирует сам себя.
type ChannelManager struct {
	mu             sync.Mutex
	activeChannels map[string]*ChannelSession
	iceServers     []webrtc.ICEServer
	registry       *registry.Registry
}

// ChannelSession представляет одно соединение с пиром
type ChannelSession struct {
	ID          string
	PeerConn    *webrtc.PeerConnection
	Backend     *rtc.Transport
	IsInitiator bool
	CreatedAt   time.Time
}

// Offer содержит данные для установки канала
type Offer struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Answer содержит ответ на предложение
type Answer struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// NewChannelManager создает новый менеджер каналов. Пустой список ICE
// серверов допустим: тогда используются только host кандидаты, чего
// хватает для локальной сети и тестов.
func NewChannelManager(iceServerURLs []string, reg *registry.Registry) *ChannelManager {
	var iceServers []webrtc.ICEServer
	if len(iceServerURLs) > 0 {
		iceServers = []webrtc.ICEServer{
			{
				URLs: iceServerURLs,
			},
		}
	}
	return &ChannelManager{
		activeChannels: make(map[string]*ChannelSession),
		iceServers:     iceServers,
		registry:       reg,
	}
}

// channelSender адаптирует *webrtc.DataChannel к rtc.ChannelSender.
// Канал привязывается позже, чем создается бэкенд: на стороне ответа
// DataChannel появляется только в OnDataChannel.
type channelSender struct {
	mu sync.Mutex
	dc *webrtc.DataChannel
}

func (s *channelSender) bind(dc *webrtc.DataChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dc = dc
}

func (s *channelSender) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.dc != nil && s.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (s *channelSender) SendMessage(data []byte) (int, error) {
	s.mu.Lock()
	dc := s.dc
	s.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return 0, fmt.Errorf("data channel is not open")
	}

	if err := dc.Send(data); err != nil {
		return 0, err
	}

	return len(data), nil
}

// newPeerConnection создает peer connection с общими обработчиками
func (cm *ChannelManager) newPeerConnection(channelID string, backend *rtc.Transport) (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{
		ICEServers: cm.iceServers,
	}

	peerConnection, err := webrtc.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	peerConnection.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Printf("Channel %s connection state: %s", channelID, s.String())
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateDisconnected {
			cm.cleanupChannel(channelID)
		}
	})

	peerConnection.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Printf("Channel %s ICE connection state: %s", channelID, s.String())
	})

	return peerConnection, nil
}

// wireDataChannel подключает DataChannel к бэкенду: входящие сообщения
// уходят в Push, а открытие канала - колбэк готовности - завершает
// init бэкенда и переключает на него Registry.
func (cm *ChannelManager) wireDataChannel(channelID string, dc *webrtc.DataChannel, sender *channelSender, backend *rtc.Transport) {
	sender.bind(dc)

	dc.OnOpen(func() {
		log.Printf("Channel %s data channel open", channelID)

		if err := backend.Init(); err != nil {
			log.Printf("Channel %s: backend init failed: %v", channelID, err)
			return
		}

		cm.registry.SetCurrent(backend)
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		backend.Push(msg.Data)
	})

	dc.OnClose(func() {
		log.Printf("Channel %s data channel closed", channelID)
	})
}

// dataChannelOptions возвращает параметры канала с семантикой датаграмм:
// без гарантий порядка и без ретрансмиссий. Надежность - забота
// протокола выше.
func dataChannelOptions() *webrtc.DataChannelInit {
	ordered := false
	maxRetransmits := uint16(0)

	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	}
}

// CreateOffer создает предложение для нового канала.
// Возвращает ID сессии и offer для передачи через сигналинг.
func (cm *ChannelManager) CreateOffer(ctx context.Context) (string, *Offer, error) {
	channelID := uuid.New().String()

	sender := &channelSender{}
	backend := rtc.New(sender)

	peerConnection, err := cm.newPeerConnection(channelID, backend)
	if err != nil {
		return "", nil, err
	}

	dataChannel, err := peerConnection.CreateDataChannel("netbridge", dataChannelOptions())
	if err != nil {
		peerConnection.Close()
		return "", nil, fmt.Errorf("failed to create data channel: %w", err)
	}

	cm.wireDataChannel(channelID, dataChannel, sender, backend)

	offer, err := peerConnection.CreateOffer(nil)
	if err != nil {
		peerConnection.Close()
		return "", nil, fmt.Errorf("failed to create offer: %w", err)
	}

	// Ждем сбора ICE кандидатов, чтобы offer был самодостаточным
	// (vanilla ICE - trickle через сигналинг не гоняем)
	gatherComplete := webrtc.GatheringCompletePromise(peerConnection)

	if err := peerConnection.SetLocalDescription(offer); err != nil {
		peerConnection.Close()
		return "", nil, fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		peerConnection.Close()
		return "", nil, ctx.Err()
	}

	local := peerConnection.LocalDescription()

	session := &ChannelSession{
		ID:          channelID,
		PeerConn:    peerConnection,
		Backend:     backend,
		IsInitiator: true,
		CreatedAt:   time.Now(),
	}

	cm.mu.Lock()
	cm.activeChannels[channelID] = session
	cm.mu.Unlock()

	return channelID, &Offer{
		SDP:  local.SDP,
		Type: local.Type.String(),
	}, nil
}

// HandleAnswer обрабатывает ответ удаленной стороны
func (cm *ChannelManager) HandleAnswer(channelID string, answer Answer) error {
	cm.mu.Lock()
	session, exists := cm.activeChannels[channelID]
	cm.mu.Unlock()

	if !exists {
		return fmt.Errorf("channel session not found")
	}

	answerSD := webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer.SDP,
	}

	return session.PeerConn.SetRemoteDescription(answerSD)
}

// CreateAnswer создает ответ на входящее предложение. DataChannel здесь
// не создается - его объявляет инициатор, мы получаем его в OnDataChannel.
func (cm *ChannelManager) CreateAnswer(ctx context.Context, offer Offer) (*Answer, error) {
	channelID := uuid.New().String()

	sender := &channelSender{}
	backend := rtc.New(sender)

	peerConnection, err := cm.newPeerConnection(channelID, backend)
	if err != nil {
		return nil, err
	}

	peerConnection.OnDataChannel(func(dc *webrtc.DataChannel) {
		log.Printf("Channel %s: incoming data channel %q", channelID, dc.Label())
		cm.wireDataChannel(channelID, dc, sender, backend)
	})

	offerSD := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offer.SDP,
	}

	if err := peerConnection.SetRemoteDescription(offerSD); err != nil {
		peerConnection.Close()
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := peerConnection.CreateAnswer(nil)
	if err != nil {
		peerConnection.Close()
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peerConnection)

	if err := peerConnection.SetLocalDescription(answer); err != nil {
		peerConnection.Close()
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-ctx.Done():
		peerConnection.Close()
		return nil, ctx.Err()
	}

	local := peerConnection.LocalDescription()

	session := &ChannelSession{
		ID:          channelID,
		PeerConn:    peerConnection,
		Backend:     backend,
		IsInitiator: false,
		CreatedAt:   time.Now(),
	}

	cm.mu.Lock()
	cm.activeChannels[channelID] = session
	cm.mu.Unlock()

	return &Answer{
		SDP:  local.SDP,
		Type: local.Type.String(),
	}, nil
}

// GetBackend возвращает транспортный бэкенд сессии
func (cm *ChannelManager) GetBackend(channelID string) (*rtc.Transport, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	session, exists := cm.activeChannels[channelID]
	if !exists {
		return nil, fmt.Errorf("channel session not found")
	}

	return session.Backend, nil
}

// CloseChannel завершает канал
func (cm *ChannelManager) CloseChannel(channelID string) {
	cm.cleanupChannel(channelID)
}

// IsChannelActive проверяет, активна ли сессия
func (cm *ChannelManager) IsChannelActive(channelID string) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	_, exists := cm.activeChannels[channelID]
	return exists
}

// cleanupChannel очищает ресурсы канала. Если его бэкенд был текущим
// транспортом, Registry откатывается на транспорт по умолчанию.
func (cm *ChannelManager) cleanupChannel(channelID string) {
	cm.mu.Lock()
	session, exists := cm.activeChannels[channelID]
	if exists {
		delete(cm.activeChannels, channelID)
	}
	cm.mu.Unlock()

	if !exists {
		return
	}

	session.Backend.Shutdown()

	if cm.registry.Current() == session.Backend {
		cm.registry.SetCurrent(cm.registry.Default())
	}

	session.PeerConn.Close()
	log.Printf("Cleaned up channel %s", channelID)
}

// GetActiveChannels возвращает список активных сессий
func (cm *ChannelManager) GetActiveChannels() []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var channels []string
	for channelID := range cm.activeChannels {
		channels = append(channels, channelID)
	}
	return channels
}
