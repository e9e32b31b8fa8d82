package listener

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/TrayMinder/internal/logger"
)

const (
	dialTimeout = 2 * time.Second
	probeWait   = time.Millisecond
)

// ErrClientClosed is returned by Click after Close.
var ErrClientClosed = errors.New("listener client closed")

// Client is the helper's end of the connection. It keeps one connection open
// and redials when the listener has gone away.
type Client struct {
	addr string
	log  *zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

func NewClient(port int) *Client {
	return &Client{
		addr: net.JoinHostPort(loopback, strconv.Itoa(port)),
		log:  logger.WithComponent("client"),
	}
}

// Click sends one command. A write on a dead connection is retried once on
// a fresh one.
func (c *Client) Click() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	if c.conn != nil && !alive(c.conn) {
		c.log.Debug().Msg("listener hung up, redialing")
		c.conn.Close()
		c.conn = nil
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if c.conn == nil {
			if c.conn, err = net.DialTimeout("tcp", c.addr, dialTimeout); err != nil {
				c.conn = nil
				return err
			}
			c.log.Debug().Str("addr", c.addr).Msg("connected")
		}

		if _, err = c.conn.Write([]byte(Command)); err == nil {
			return nil
		}
		c.log.Debug().Err(err).Msg("connection lost, redialing")
		c.conn.Close()
		c.conn = nil
	}
	return err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// alive reports whether the peer still has conn open. The listener never
// writes, so a read either times out (open) or fails (closed).
func alive(conn net.Conn) bool {
	var b [1]byte
	conn.SetReadDeadline(time.Now().Add(probeWait))
	defer conn.SetReadDeadline(time.Time{})

	_, err := conn.Read(b[:])
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
