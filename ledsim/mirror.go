// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ledsim

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// writeWait bounds the time spent pushing one frame to a slow client.
const writeWait = 200 * time.Millisecond

// Frame is the JSON message pushed to websocket clients.
type Frame struct {
	// Seq is the chain transaction count when the frame was sent.
	Seq   int         `json:"seq"`
	Chips []ChipState `json:"chips"`
}

// Mirror serves the state of a Chain to websocket clients.
//
// Each client first receives the current snapshot, then one Frame after
// every transaction on the chain. Messages sent by clients are ignored.
type Mirror struct {
	chain *Chain
	log   zerolog.Logger
	up    websocket.Upgrader

	mu      sync.Mutex
	clients int
}

// NewMirror returns a Mirror for chain. A nil log disables logging.
func NewMirror(chain *Chain, log *zerolog.Logger) *Mirror {
	l := zerolog.Nop()
	if log != nil {
		l = log.With().Str("component", "mirror").Logger()
	}
	return &Mirror{
		chain: chain,
		log:   l,
		up:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Clients returns the number of connected clients.
func (m *Mirror) Clients() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients
}

// ServeHTTP implements http.Handler.
func (m *Mirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := m.up.Upgrade(w, r, nil)
	if err != nil {
		m.log.Debug().Err(err).Msg("upgrade")
		return
	}
	defer conn.Close()

	ch, cancel := m.chain.Subscribe()
	defer cancel()
	m.mu.Lock()
	m.clients++
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.clients--
		m.mu.Unlock()
	}()
	m.log.Info().Str("remote", r.RemoteAddr).Msg("client connected")

	// The read loop only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := m.send(conn, m.chain.Snapshot()); err != nil {
		m.log.Debug().Err(err).Msg("write frame")
		return
	}
	for {
		select {
		case <-closed:
			m.log.Info().Str("remote", r.RemoteAddr).Msg("client disconnected")
			return
		case <-r.Context().Done():
			return
		case chips, ok := <-ch:
			if !ok {
				return
			}
			if err := m.send(conn, chips); err != nil {
				m.log.Debug().Err(err).Msg("write frame")
				return
			}
		}
	}
}

func (m *Mirror) send(conn *websocket.Conn, chips []ChipState) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(Frame{Seq: m.chain.Transactions(), Chips: chips})
}

var _ http.Handler = &Mirror{}
