// Package listener accepts the tray helper's loopback connection and turns
// its CLICKED command into a dispatch on the event loop.
package listener

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/helper"
	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

// Command is the only token the helper sends.
const Command = "CLICKED"

const (
	readBufferSize = 1024
	loopback       = "127.0.0.1"
)

// ErrInvalidPort is returned when the configured port is absent or not a
// number.
var ErrInvalidPort = errors.New("listener port is missing or not a number")

// Poster hands work to the main thread. It must give up once cancel is
// closed so Close never waits on a full queue.
type Poster interface {
	PostOrCancel(cancel <-chan struct{}, fn func()) bool
}

// Listener serves one helper connection at a time on 127.0.0.1.
type Listener struct {
	loop    Poster
	onClick func()
	log     *zerolog.Logger

	ln      net.Listener
	port    int
	mu      sync.Mutex
	conn    net.Conn
	closed  bool
	closing chan struct{}
	wg      sync.WaitGroup

	clicks atomic.Int64
}

// New creates a listener that posts onClick to loop for every command.
func New(loop Poster, onClick func()) *Listener {
	return &Listener{
		loop:    loop,
		onClick: onClick,
		log:     logger.WithComponent("listener"),
	}
}

// Start binds the loopback port and begins accepting. The port is validated
// first; nothing is bound when it is absent or non-numeric.
func (l *Listener) Start(port string) error {
	p, ok := helper.ParsePort(port)
	if !ok {
		l.log.Error().Str("port", port).Msg("refusing to listen")
		return fmt.Errorf("%w: %q", ErrInvalidPort, port)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(loopback, strconv.Itoa(p)))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", p, err)
	}

	closing := make(chan struct{})
	l.mu.Lock()
	l.ln = ln
	l.port = p
	l.closed = false
	l.closing = closing
	l.mu.Unlock()

	l.wg.Add(1)
	go l.acceptLoop(ln, closing)

	l.log.Info().Str("addr", ln.Addr().String()).Msg("listening for helper")
	return nil
}

// Port returns the bound port, zero when not listening.
func (l *Listener) Port() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return 0
	}
	return l.port
}

// Clicks returns how many commands were received.
func (l *Listener) Clicks() int64 {
	return l.clicks.Load()
}

// Connected reports whether a helper is currently connected.
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn != nil
}

func (l *Listener) acceptLoop(ln net.Listener, closing <-chan struct{}) {
	defer l.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.log.Warn().Err(err).Msg("accept failed")
			continue
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			conn.Close()
			return
		}
		l.conn = conn
		l.mu.Unlock()

		// Served inline: a second client waits until this one hangs up.
		l.serve(conn, closing)

		l.mu.Lock()
		l.conn = nil
		l.mu.Unlock()
	}
}

func (l *Listener) serve(conn net.Conn, closing <-chan struct{}) {
	defer conn.Close()

	log := l.log.With().Str("conn", uuid.NewString()).Str("remote", conn.RemoteAddr().String()).Logger()
	log.Debug().Msg("helper connected")

	buf := make([]byte, readBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			l.handle(&log, closing, string(buf[:n]))
		}
		if err != nil {
			log.Debug().Err(err).Msg("helper disconnected")
			return
		}
	}
}

// handle processes one read. The chunk is trimmed and must equal the command
// exactly.
func (l *Listener) handle(log *zerolog.Logger, closing <-chan struct{}, chunk string) {
	msg := strings.TrimSpace(chunk)
	if msg != Command {
		log.Debug().Str("data", msg).Msg("ignoring unknown input")
		return
	}
	l.clicks.Add(1)
	if !l.loop.PostOrCancel(closing, l.onClick) {
		log.Warn().Msg("listener closing or event loop stopped; click dropped")
	}
}

// Close stops accepting, drops the current connection and waits for the
// accept goroutine. Safe to call more than once.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed || l.ln == nil {
		l.closed = true
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	ln := l.ln
	conn := l.conn
	l.ln = nil
	close(l.closing)
	l.mu.Unlock()

	err := ln.Close()
	if conn != nil {
		conn.Close()
	}
	l.wg.Wait()
	l.log.Debug().Msg("listener closed")
	return err
}

// Restart closes the current socket and listens on port.
func (l *Listener) Restart(port string) error {
	if err := l.Close(); err != nil {
		l.log.Warn().Err(err).Msg("close before restart failed")
	}
	return l.Start(port)
}
