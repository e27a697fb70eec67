package charger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"voltpay/internal/domain"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeBridgeServer answers each command frame via respond, or swallows the
// frame when respond returns nil.
func fakeBridgeServer(t *testing.T, respond func(frame commandFrame) *CommandResponse) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame commandFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			if resp := respond(frame); resp != nil {
				if err := conn.WriteJSON(resp); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSendCommandCorrelatesByMessageID(t *testing.T) {
	srv := fakeBridgeServer(t, func(frame commandFrame) *CommandResponse {
		return &CommandResponse{
			MessageID: frame.MessageID,
			DeviceID:  frame.DeviceID,
			Status:    domain.CommandAccepted,
		}
	})
	b := NewBridge(wsURL(srv))
	defer b.Close()

	resp, err := b.SendCommand(context.Background(), "dev-1", domain.ActionRemoteStart, nil, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, domain.CommandAccepted, resp.Status)
	require.Equal(t, "dev-1", resp.DeviceID)
}

func TestSendCommandIgnoresUncorrelatedFrames(t *testing.T) {
	srv := fakeBridgeServer(t, func(frame commandFrame) *CommandResponse {
		if frame.DeviceID == "dev-silent" {
			// Answer with a stale id first; only the correlated reply counts.
			return &CommandResponse{MessageID: "someone-else", Status: domain.CommandRejected}
		}
		return &CommandResponse{MessageID: frame.MessageID, DeviceID: frame.DeviceID, Status: domain.CommandAccepted}
	})
	b := NewBridge(wsURL(srv))
	defer b.Close()

	_, err := b.SendCommand(context.Background(), "dev-silent", domain.ActionRemoteStart, nil, 200*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrDeviceTimeout)

	// The connection stays usable for the next caller.
	resp, err := b.SendCommand(context.Background(), "dev-ok", domain.ActionRemoteStop, nil, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, domain.CommandAccepted, resp.Status)
}

func TestSendCommandTimeoutIsNotRejection(t *testing.T) {
	srv := fakeBridgeServer(t, func(frame commandFrame) *CommandResponse {
		return nil // device never answers
	})
	b := NewBridge(wsURL(srv))
	defer b.Close()

	resp, err := b.SendCommand(context.Background(), "dev-1", domain.ActionRemoteStart, nil, 100*time.Millisecond)
	require.Nil(t, resp)
	require.ErrorIs(t, err, domain.ErrDeviceTimeout)
}

func TestSendCommandContextCancel(t *testing.T) {
	srv := fakeBridgeServer(t, func(frame commandFrame) *CommandResponse {
		return nil
	})
	b := NewBridge(wsURL(srv))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := b.SendCommand(ctx, "dev-1", domain.ActionRemoteStart, nil, 5*time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSendCommandUnreachableBridge(t *testing.T) {
	b := NewBridge("ws://127.0.0.1:1/bridge")

	_, err := b.SendCommand(context.Background(), "dev-1", domain.ActionRemoteStart, nil, time.Second)
	require.ErrorIs(t, err, domain.ErrDeviceUnreachable)
}

func TestSendCommandPassesPayload(t *testing.T) {
	frames := make(chan commandFrame, 1)
	srv := fakeBridgeServer(t, func(frame commandFrame) *CommandResponse {
		frames <- frame
		return &CommandResponse{MessageID: frame.MessageID, DeviceID: frame.DeviceID, Status: domain.CommandAccepted}
	})
	b := NewBridge(wsURL(srv))
	defer b.Close()

	_, err := b.SendCommand(context.Background(), "dev-1", domain.ActionRemoteStart, map[string]interface{}{
		"connector_id": 2,
	}, 2*time.Second)
	require.NoError(t, err)
	got := <-frames
	require.Equal(t, domain.ActionRemoteStart, got.Action)
	require.EqualValues(t, 2, got.Payload["connector_id"])
}
