// Package transport receives BACnet/IP datagrams
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"
)

// MaxDatagramSize is the largest BVLC frame a datagram can carry
const MaxDatagramSize = 1500

// ErrNotOpen is returned when receiving on a listener that is not open
var ErrNotOpen = errors.New("transport not open")

// Datagram is one received UDP payload
type Datagram struct {
	Data []byte
	From netip.AddrPort
	To   netip.AddrPort
	Time time.Time
}

// UDPListener passively receives BACnet/IP datagrams
type UDPListener struct {
	localAddr   string
	conn        *net.UDPConn
	mu          sync.RWMutex
	readTimeout time.Duration
	closed      bool
}

// NewUDPListener creates a listener bound to localAddr on Open
func NewUDPListener(localAddr string) *UDPListener {
	return &UDPListener{
		localAddr:   localAddr,
		readTimeout: 3 * time.Second,
	}
}

// SetReadTimeout sets the read timeout used when the context has no deadline
func (l *UDPListener) SetReadTimeout(d time.Duration) {
	l.mu.Lock()
	l.readTimeout = d
	l.mu.Unlock()
}

// Open binds the UDP socket
func (l *UDPListener) Open(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil && !l.closed {
		return nil
	}

	var addr *net.UDPAddr
	var err error

	if l.localAddr != "" {
		addr, err = net.ResolveUDPAddr("udp4", l.localAddr)
		if err != nil {
			return fmt.Errorf("resolve local address: %w", err)
		}
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("listen UDP: %w", err)
	}

	l.conn = conn
	l.closed = false
	return nil
}

// Close closes the UDP socket
func (l *UDPListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil || l.closed {
		return nil
	}

	l.closed = true
	return l.conn.Close()
}

// LocalAddr returns the bound address
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Receive waits for the next datagram. The deadline comes from ctx or, when
// ctx has none, from the read timeout.
func (l *UDPListener) Receive(ctx context.Context) (Datagram, error) {
	l.mu.RLock()
	conn := l.conn
	closed := l.closed
	readTimeout := l.readTimeout
	l.mu.RUnlock()

	if conn == nil || closed {
		return Datagram{}, ErrNotOpen
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(readTimeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return Datagram{}, fmt.Errorf("set read deadline: %w", err)
	}

	buf := make([]byte, MaxDatagramSize)
	n, from, err := conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return Datagram{}, err
	}

	dg := Datagram{
		Data: buf[:n],
		From: from,
		Time: time.Now(),
	}
	if local, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		dg.To = local.AddrPort()
	}
	return dg, nil
}

// IsTimeout reports whether err is a read deadline expiry
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsClosed returns true if the listener is closed
func (l *UDPListener) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}
