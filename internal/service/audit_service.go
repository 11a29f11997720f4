package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	"github.com/moshiurrahman101/ccit-sub003/pkg/jobs"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService persists audit trail records off the request path through a
// background worker queue. A full queue or a failed write never blocks or
// fails the operation being audited.
type AuditService struct {
	repo   auditWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService constructs the audit service and its queue. Start must be
// called before records are accepted.
func NewAuditService(repo auditWriter, cfg jobs.QueueConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("audit", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an audit log entry for asynchronous persistence.
func (s *AuditService) Record(log *models.AuditLog) {
	if s == nil || log == nil {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    log.Action,
		Payload: log,
	}); err != nil {
		s.logger.Warn("failed to enqueue audit log", zap.String("action", log.Action), zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload type %T", job.Payload)
	}
	return s.repo.CreateAuditLog(ctx, log)
}
