package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/expirians/orders-ms/internal/domain"
)

const (
	recordPending = "pending"
	recordSent    = "sent"
	recordFailed  = "failed"
)

// outboxRecord — сообщение плюс служебные поля. seq фиксирует порядок
// постановки и разрешает ничьи при одинаковом createdAt.
type outboxRecord struct {
	msg       domain.OutboxMessage
	status    string
	attempts  int
	seq       uint64
	createdAt time.Time
	updatedAt time.Time
}

// outboxRepositoryInMemory — in-memory реализация transactional outbox
// для тестов и запуска без PostgreSQL.
type outboxRepositoryInMemory struct {
	mu      sync.RWMutex
	nextSeq uint64
	records map[string]*outboxRecord
}

var _ domain.OutboxRepository = (*outboxRepositoryInMemory)(nil)

// NewOutboxRepository создаёт пустой in-memory outbox.
func NewOutboxRepository() *outboxRepositoryInMemory {
	return &outboxRepositoryInMemory{records: make(map[string]*outboxRecord)}
}

// Enqueue кладёт сообщение в статусе pending, генерируя id при необходимости.
func (r *outboxRepositoryInMemory) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	r.nextSeq++
	r.records[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    recordPending,
		seq:       r.nextSeq,
		createdAt: now,
		updatedAt: now,
	}
	return msg, nil
}

// PullPending отдаёт pending-сообщения в порядке постановки, не больше limit.
func (r *outboxRepositoryInMemory) PullPending(limit int) ([]domain.OutboxMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	pending := make([]*outboxRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.status == recordPending {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].seq < pending[j].seq
	})

	if len(pending) > limit {
		pending = pending[:limit]
	}
	batch := make([]domain.OutboxMessage, len(pending))
	for i, rec := range pending {
		batch[i] = rec.msg
	}
	return batch, nil
}

// Stats считает pending-сообщения и время самого старого из них.
func (r *outboxRepositoryInMemory) Stats() (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats domain.OutboxStats
	for _, rec := range r.records {
		if rec.status != recordPending {
			continue
		}
		stats.PendingCount++
		if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
			stats.OldestPendingAt = rec.createdAt
		}
	}
	return stats, nil
}

func (r *outboxRepositoryInMemory) MarkSent(id string) error {
	return r.setStatus(id, recordSent)
}

func (r *outboxRepositoryInMemory) MarkFailed(id string) error {
	return r.setStatus(id, recordFailed)
}

func (r *outboxRepositoryInMemory) setStatus(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	rec.status = status
	rec.attempts++
	rec.updatedAt = time.Now().UTC()
	return nil
}
