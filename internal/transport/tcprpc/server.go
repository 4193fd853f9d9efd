package tcprpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	serverRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tcprpc_server_requests_total",
		Help: "Total number of handled commands grouped by command and result kind.",
	}, []string{"command", "result"})
	serverRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tcprpc_server_request_duration_seconds",
		Help:    "Command handling duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"command"})
)

// HandlerFunc обрабатывает команду: получает сырой JSON-payload и
// возвращает сериализуемый ответ либо ошибку.
type HandlerFunc func(ctx context.Context, data json.RawMessage) (any, error)

// Server — командный TCP-сервер: диспетчеризация по имени команды.
type Server struct {
	logger *log.Entry

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	lis      net.Listener
	conns    map[net.Conn]struct{}
	closed   bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer создаёт сервер без зарегистрированных команд.
func NewServer(logger *log.Entry) *Server {
	if logger == nil {
		logger = log.WithField("component", "tcprpc-server")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
		conns:    make(map[net.Conn]struct{}),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Handle регистрирует обработчик команды. Повторная регистрация
// перезаписывает предыдущий обработчик.
func (s *Server) Handle(pattern string, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[pattern] = handler
}

// Serve принимает соединения до Shutdown. Возвращает nil после
// штатной остановки.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("tcprpc: server is closed")
	}
	s.lis = lis
	s.mu.Unlock()

	for {
		conn, err := lis.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConn(conn)
	}
}

// Shutdown останавливает приём, закрывает соединения и ждёт завершения
// обработчиков в пределах ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	lis := s.lis
	conns := make([]net.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	s.cancel()
	if lis != nil {
		_ = lis.Close()
	}
	for _, conn := range conns {
		_ = conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() {
		_ = conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.wg.Done()
	}()

	reader := bufio.NewReader(conn)
	for {
		var req request
		if err := readFrame(reader, &req); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && s.baseCtx.Err() == nil {
				s.logger.WithError(err).Debug("connection read failed")
			}
			return
		}

		resp := s.dispatch(req)
		if err := writeFrame(conn, resp); err != nil {
			if s.baseCtx.Err() == nil {
				s.logger.WithError(err).WithField("pattern", req.Pattern).Warn("failed to write response")
			}
			return
		}
	}
}

func (s *Server) dispatch(req request) response {
	s.mu.Lock()
	handler, ok := s.handlers[req.Pattern]
	s.mu.Unlock()

	if !ok {
		serverRequests.WithLabelValues(req.Pattern, "unknown_command").Inc()
		return response{ID: req.ID, Error: &Error{
			Kind:    KindInternal,
			Message: "unknown command: " + req.Pattern,
		}}
	}

	start := time.Now()
	result, err := handler(s.baseCtx, req.Data)
	serverRequestDuration.WithLabelValues(req.Pattern).Observe(time.Since(start).Seconds())
	if err != nil {
		var rpcErr *Error
		if !errors.As(err, &rpcErr) {
			rpcErr = &Error{Kind: KindInternal, Message: err.Error()}
		}
		serverRequests.WithLabelValues(req.Pattern, rpcErr.Kind).Inc()
		return response{ID: req.ID, Error: rpcErr}
	}
	serverRequests.WithLabelValues(req.Pattern, "ok").Inc()

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.WithError(err).WithField("pattern", req.Pattern).Error("failed to marshal response")
		return response{ID: req.ID, Error: &Error{
			Kind:    KindInternal,
			Message: "failed to encode response",
		}}
	}

	return response{ID: req.ID, Data: data}
}
