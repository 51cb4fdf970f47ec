package httpapi

import (
	"context"
	"sync/atomic"
	"time"

	"jobaudit-engine/internal/audit"
	"jobaudit-engine/internal/domain"
	"jobaudit-engine/internal/events"
)

// AuditService is what the audit routes need from audit.Service.
type AuditService interface {
	Sources() []string
	TestConnection(ctx context.Context, remoteURL string) error
	Start(ctx context.Context, remoteURL string, configs []domain.SearchConfig) (string, error)
	Status(id string) (audit.Record, bool)
	Cancel(id string) error
	Len() int
}

type RoleChecker interface {
	CheckOpen(ctx context.Context, applicationURL string) (domain.RoleCheck, error)
}

type PositionStore interface {
	ListOpenRoles(ctx context.Context) ([]domain.Position, error)
	UpdatePositionStatus(ctx context.Context, id, status string, now time.Time) (domain.Position, error)
}

type Deps struct {
	Audits    AuditService
	Roles     RoleChecker
	Positions PositionStore

	Hub *events.Hub

	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string

	Now func() time.Time
}
