package server

import (
	"context"
	"time"

	"github.com/koltyakov/posbridge/internal/domain"
)

const (
	auditWriteTimeout  = 2 * time.Second
	auditPurgeInterval = time.Hour
)

// recordAccess queues a gate decision for the audit store. It never blocks
// the upgrade path; decisions are dropped when the queue is full.
func (s *Server) recordAccess(evt domain.AccessEvent) {
	if s.auditQueue == nil {
		return
	}
	select {
	case s.auditQueue <- evt:
	default:
		s.auditDropped.Add(1)
	}
}

func (s *Server) runAuditWorker(ctx context.Context) {
	s.purgeAuditEvents(ctx)

	ticker := time.NewTicker(auditPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.drainAuditQueue()
			return
		case evt := <-s.auditQueue:
			s.writeAuditEvent(ctx, evt)
		case <-ticker.C:
			s.purgeAuditEvents(ctx)
		}
	}
}

func (s *Server) drainAuditQueue() {
	for {
		select {
		case evt := <-s.auditQueue:
			s.writeAuditEvent(context.Background(), evt)
		default:
			if dropped := s.auditDropped.Swap(0); dropped > 0 {
				s.log.Warn("access audit events dropped", "count", dropped)
			}
			return
		}
	}
}

func (s *Server) writeAuditEvent(parentCtx context.Context, evt domain.AccessEvent) {
	ctx, cancel := context.WithTimeout(parentCtx, auditWriteTimeout)
	defer cancel()
	if err := s.audit.RecordAccessEvent(ctx, evt); err != nil {
		s.log.Warn("access audit write failed", "remote", evt.RemoteIP, "err", err)
	}
}

func (s *Server) purgeAuditEvents(parentCtx context.Context) {
	if s.cfg.AuditRetention <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(parentCtx, auditWriteTimeout)
	defer cancel()
	removed, err := s.audit.PurgeAccessEventsBefore(ctx, time.Now().Add(-s.cfg.AuditRetention))
	if err != nil {
		s.log.Warn("access audit purge failed", "err", err)
		return
	}
	if removed > 0 {
		s.log.Info("purged access audit events", "count", removed)
	}
}
