package charger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"voltpay/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	bridgeWriteWait = 10 * time.Second
	bridgeReadLimit = 64 * 1024
)

// CommandSender dispatches a command to a charger and waits for its response.
// The physical wire protocol lives behind the external bridge; this side only
// correlates requests with responses.
type CommandSender interface {
	SendCommand(ctx context.Context, deviceID, action string, payload map[string]interface{}, timeout time.Duration) (*CommandResponse, error)
}

type commandFrame struct {
	MessageID string                 `json:"message_id"`
	DeviceID  string                 `json:"device_id"`
	Action    string                 `json:"action"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

type CommandResponse struct {
	MessageID string                 `json:"message_id"`
	DeviceID  string                 `json:"device_id"`
	Status    string                 `json:"status"` // Accepted / Rejected
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Bridge holds one websocket connection to the charger-bridge service.
// Writes are serialized; a read pump routes responses to waiting callers by
// message id.
type Bridge struct {
	url string

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan *CommandResponse
}

func NewBridge(url string) *Bridge {
	return &Bridge{url: url, pending: make(map[string]chan *CommandResponse)}
}

// SendCommand dispatches action to deviceID and waits up to timeout for the
// correlated response. A timeout is not a rejection: the charger may have
// acted anyway, so it surfaces as ErrDeviceTimeout ("verify status").
func (b *Bridge) SendCommand(ctx context.Context, deviceID, action string, payload map[string]interface{}, timeout time.Duration) (*CommandResponse, error) {
	frame := commandFrame{
		MessageID: uuid.NewString(),
		DeviceID:  deviceID,
		Action:    action,
		Payload:   payload,
	}
	ch := make(chan *CommandResponse, 1)

	b.mu.Lock()
	if err := b.ensureConn(); err != nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnreachable, err)
	}
	b.pending[frame.MessageID] = ch
	b.conn.SetWriteDeadline(time.Now().Add(bridgeWriteWait))
	err := b.conn.WriteJSON(frame)
	b.mu.Unlock()
	if err != nil {
		b.forget(frame.MessageID)
		b.dropConn()
		return nil, fmt.Errorf("%w: %v", domain.ErrDeviceUnreachable, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		b.forget(frame.MessageID)
		return nil, domain.ErrDeviceTimeout
	case <-ctx.Done():
		b.forget(frame.MessageID)
		return nil, ctx.Err()
	}
}

func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// ensureConn dials lazily; callers hold b.mu.
func (b *Bridge) ensureConn() error {
	if b.conn != nil {
		return nil
	}
	conn, _, err := websocket.DefaultDialer.Dial(b.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(bridgeReadLimit)
	b.conn = conn
	go b.readPump(conn)
	log.Printf("[bridge] connected to %s", b.url)
	return nil
}

func (b *Bridge) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[bridge] read: %v", err)
			b.dropConn()
			return
		}
		var resp CommandResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			log.Printf("[bridge] bad frame: %v", err)
			continue
		}
		b.mu.Lock()
		ch, ok := b.pending[resp.MessageID]
		if ok {
			delete(b.pending, resp.MessageID)
		}
		b.mu.Unlock()
		if ok {
			ch <- &resp
		}
	}
}

func (b *Bridge) forget(messageID string) {
	b.mu.Lock()
	delete(b.pending, messageID)
	b.mu.Unlock()
}

func (b *Bridge) dropConn() {
	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
	b.mu.Unlock()
}
