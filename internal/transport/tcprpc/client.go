package tcprpc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const defaultDialTimeout = 5 * time.Second

// Client — клиент командного протокола. Держит одно соединение и
// мультиплексирует запросы по корреляционным ID.
type Client struct {
	addr        string
	dialTimeout time.Duration
	logger      *log.Entry

	mu      sync.Mutex
	conn    net.Conn
	pending map[string]chan response
}

// ClientOption настраивает клиента.
type ClientOption func(*Client)

// WithDialTimeout задаёт таймаут установки соединения.
func WithDialTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.dialTimeout = timeout
		}
	}
}

// WithClientLogger задаёт logger клиента.
func WithClientLogger(logger *log.Entry) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient создаёт клиента; соединение устанавливается лениво при
// первом вызове Invoke.
func NewClient(addr string, options ...ClientOption) *Client {
	client := &Client{
		addr:        addr,
		dialTimeout: defaultDialTimeout,
		logger:      log.WithField("component", "tcprpc-client"),
		pending:     make(map[string]chan response),
	}
	for _, option := range options {
		option(client)
	}
	return client
}

// Invoke отправляет команду и ждёт ответ до истечения ctx.
// Ответная ошибка сервера возвращается как *Error.
func (c *Client) Invoke(ctx context.Context, pattern string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request payload: %w", err)
	}

	id := uuid.NewString()
	ch := make(chan response, 1)

	c.mu.Lock()
	if err := c.ensureConnLocked(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	c.pending[id] = ch
	conn := c.conn
	writeErr := writeFrame(conn, request{ID: id, Pattern: pattern, Data: data})
	c.mu.Unlock()

	if writeErr != nil {
		c.drop(id, conn)
		return fmt.Errorf("send %s: %w", pattern, writeErr)
	}

	select {
	case <-ctx.Done():
		c.drop(id, nil)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("send %s: connection lost", pattern)
		}
		if resp.Error != nil {
			return resp.Error
		}
		if out != nil && len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("decode %s response: %w", pattern, err)
			}
		}
		return nil
	}
}

// Close разрывает соединение; незавершённые вызовы получают ошибку.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.failPendingLocked()
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) ensureConnLocked() error {
	if c.conn != nil {
		return nil
	}

	conn, err := net.DialTimeout("tcp", c.addr, c.dialTimeout)
	if err != nil {
		return err
	}
	c.conn = conn
	go c.readLoop(conn)
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	reader := bufio.NewReader(conn)
	for {
		var resp response
		if err := readFrame(reader, &resp); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				c.failPendingLocked()
			}
			c.mu.Unlock()
			_ = conn.Close()
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		if !ok {
			c.logger.WithField("correlation_id", resp.ID).Debug("response without pending call")
			continue
		}
		ch <- resp
	}
}

// drop снимает ожидание ответа; если передан conn, соединение
// сбрасывается для переустановки.
func (c *Client) drop(id string, conn net.Conn) {
	c.mu.Lock()
	delete(c.pending, id)
	if conn != nil && c.conn == conn {
		c.conn = nil
		c.failPendingLocked()
	}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func (c *Client) failPendingLocked() {
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
}
