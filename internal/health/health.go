package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/expirians/orders-ms/internal/domain"
)

// Status — итог проверки компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// severity задаёт порядок деградации: общий статус сервиса равен
// худшему из статусов компонентов.
func severity(s Status) int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}

func worseOf(a, b Status) Status {
	if severity(b) > severity(a) {
		return b
	}
	return a
}

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func newCheck(name string, status Status, message string, elapsed time.Duration) Check {
	return Check{
		Name:       name,
		Status:     status,
		Message:    message,
		DurationMs: elapsed.Milliseconds(),
	}
}

// Response — JSON-тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker выполняет одну проверку здоровья.
type Checker interface {
	Check() Check
}

// Handler собирает зарегистрированные проверки и отдаёт их агрегат
// на /healthz и /readyz.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]Checker
	version   string
	startTime time.Time
}

// NewHandler создаёт handler без проверок; компоненты регистрируются
// через RegisterChecker по мере инициализации.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]Checker),
		version:   version,
		startTime: time.Now(),
	}
}

// RegisterChecker добавляет или заменяет проверку по имени.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

func (h *Handler) runChecks() (map[string]Check, Status) {
	h.mu.RLock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	h.mu.RUnlock()

	// Сами проверки выполняются вне лока: Check может ходить в БД.
	checks := make(map[string]Check, len(checkers))
	overall := StatusHealthy
	for name, checker := range checkers {
		check := checker.Check()
		checks[name] = check
		overall = worseOf(overall, check.Status)
	}
	return checks, overall
}

// ServeHTTP отвечает полным отчётом по всем компонентам;
// при unhealthy возвращается 503.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	checks, overall := h.runChecks()

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(Response{
		Status:        overall,
		Timestamp:     time.Now(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// LivenessHandler отвечает 200, пока процесс жив.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler возвращает 503, пока хоть одна проверка unhealthy.
// Degraded не снимает трафик: сервис продолжает отвечать.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	if _, overall := h.runChecks(); overall == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// SimpleChecker оборачивает функцию в Checker: nil — healthy,
// ошибка — unhealthy с её текстом.
type SimpleChecker struct {
	name    string
	checkFn func() error
}

// NewSimpleChecker создаёт проверку из функции.
func NewSimpleChecker(name string, checkFn func() error) *SimpleChecker {
	return &SimpleChecker{name: name, checkFn: checkFn}
}

func (c *SimpleChecker) Check() Check {
	start := time.Now()
	err := c.checkFn()
	elapsed := time.Since(start)

	if err != nil {
		return newCheck(c.name, StatusUnhealthy, err.Error(), elapsed)
	}
	return newCheck(c.name, StatusHealthy, "", elapsed)
}

// OutboxChecker деградирует, когда backlog transactional outbox растёт:
// события заказов перестают доходить до брокера.
type OutboxChecker struct {
	repo         domain.OutboxRepository
	maxPending   int
	maxOldestAge time.Duration
}

// NewOutboxChecker создаёт проверку backlog outbox. Неположительные
// пороги заменяются дефолтами: 1000 сообщений и одна минута.
func NewOutboxChecker(repo domain.OutboxRepository, maxPending int, maxOldestAge time.Duration) *OutboxChecker {
	if maxPending <= 0 {
		maxPending = 1000
	}
	if maxOldestAge <= 0 {
		maxOldestAge = time.Minute
	}
	return &OutboxChecker{
		repo:         repo,
		maxPending:   maxPending,
		maxOldestAge: maxOldestAge,
	}
}

func (c *OutboxChecker) Check() Check {
	start := time.Now()
	stats, err := c.repo.Stats()
	elapsed := time.Since(start)

	switch {
	case err != nil:
		return newCheck("outbox", StatusUnhealthy, err.Error(), elapsed)
	case stats.PendingCount > c.maxPending:
		msg := fmt.Sprintf("outbox backlog is too large: %d pending", stats.PendingCount)
		return newCheck("outbox", StatusDegraded, msg, elapsed)
	case !stats.OldestPendingAt.IsZero() && time.Since(stats.OldestPendingAt) > c.maxOldestAge:
		msg := fmt.Sprintf("oldest pending outbox message is older than %s", c.maxOldestAge)
		return newCheck("outbox", StatusDegraded, msg, elapsed)
	default:
		return newCheck("outbox", StatusHealthy, "", elapsed)
	}
}
