// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package groundstation implements the long-lived link to the ground
// station: a newline-terminated text protocol carried over raw TCP or,
// optionally, a WebSocket, with reconnect-with-backoff and translation
// between wire command codes and state-machine events.
package groundstation

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Connection is the byte-stream abstraction shared by every transport this
// package supports.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// TCPConnection wraps a raw net.Conn.
type TCPConnection struct {
	conn net.Conn
}

func (t *TCPConnection) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *TCPConnection) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *TCPConnection) Close() error                { return t.conn.Close() }

// DialTCP opens the spec-mandated raw TCP transport to the ground station.
func DialTCP(addr string, timeout time.Duration) (Connection, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial ground station %s: %w", addr, err)
	}
	return &TCPConnection{conn: conn}, nil
}

// WebSocketConnection adapts a gorilla/websocket connection to the
// io.Reader/io.Writer shape the rest of this package expects, buffering
// partially-consumed text messages.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}
	for {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error { return w.conn.Close() }

// DialWebSocket opens the optional WebSocket transport to the ground
// station, selected in place of raw TCP when a ws:// or wss:// URL is
// configured.
func DialWebSocket(wsURL string, timeout time.Duration, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ground station URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported ground station URL scheme: %s", u.Scheme)
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	conn, _, err := dialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial ground station %s: %w", wsURL, err)
	}
	return &WebSocketConnection{conn: conn}, nil
}
