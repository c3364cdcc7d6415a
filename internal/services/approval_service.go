package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/you/eventhub/domain"
)

// ApprovalServiceImpl implements domain.ApprovalService
type ApprovalServiceImpl struct {
	accounts domain.AccountRepository
	audit    domain.AuditLogger
	clock    func() time.Time
	log      zerolog.Logger
}

// NewApprovalService creates a new approval service
func NewApprovalService(accounts domain.AccountRepository, audit domain.AuditLogger, clock func() time.Time, log zerolog.Logger) domain.ApprovalService {
	if clock == nil {
		clock = time.Now
	}
	return &ApprovalServiceImpl{
		accounts: accounts,
		audit:    audit,
		clock:    clock,
		log:      log.With().Str("component", "approval").Logger(),
	}
}

// Decide implements domain.ApprovalService. The pending check and the
// write are one conditional update, so a second decision on the same
// target fails with ErrAlreadyProcessed and changes nothing.
func (s *ApprovalServiceImpl) Decide(ctx context.Context, approver *domain.TokenClaims, role domain.Role, id uint, action domain.ApprovalAction) (*domain.Account, error) {
	if role != domain.RoleStaff && role != domain.RoleAdmin {
		return nil, domain.NewFieldError("kind", "only staff and admin registrations need approval")
	}
	admin, err := s.authorize(ctx, approver, role, id)
	if err != nil {
		return nil, err
	}

	var decision domain.ApprovalDecision
	eventType := domain.AccountApprovedEvent
	switch action {
	case domain.ActionApprove:
		now := s.clock()
		decision = domain.ApprovalDecision{
			State:      domain.ApprovedState(true),
			ApprovedAt: &now,
			ApprovedBy: admin.ShortCode,
		}
	case domain.ActionDeny:
		decision = domain.ApprovalDecision{State: domain.RejectedState()}
		eventType = domain.AccountDeniedEvent
	default:
		return nil, domain.NewFieldError("action", "must be approve or deny")
	}

	if err := s.accounts.ResolvePending(ctx, role, id, decision); err != nil {
		s.audit.LogEvent(ctx, domain.NewAuditEvent(eventType).
			WithRole(role).
			WithMetadata("target_id", id).
			WithMetadata("approver", admin.ShortCode).
			WithError(err))
		return nil, err
	}

	target, err := s.accounts.FindByID(ctx, role, id)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, domain.NewAuditEvent(eventType).
		WithAccount(target).
		WithMetadata("approver", admin.ShortCode))
	return target, nil
}

// SetActive implements domain.ApprovalService. Any account kind may be
// suspended or re-activated, but only once it has been approved.
func (s *ApprovalServiceImpl) SetActive(ctx context.Context, approver *domain.TokenClaims, role domain.Role, id uint, active bool) (*domain.Account, error) {
	admin, err := s.authorize(ctx, approver, role, id)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.SetActive(ctx, role, id, active); err != nil {
		return nil, err
	}
	target, err := s.accounts.FindByID(ctx, role, id)
	if err != nil {
		return nil, err
	}
	s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.AccountActivationEvent).
		WithAccount(target).
		WithMetadata("active", active).
		WithMetadata("approver", admin.ShortCode))
	return target, nil
}

// ListPending implements domain.ApprovalService
func (s *ApprovalServiceImpl) ListPending(ctx context.Context, approver *domain.TokenClaims, role domain.Role) ([]*domain.Account, error) {
	if role != domain.RoleStaff && role != domain.RoleAdmin {
		return nil, domain.NewFieldError("kind", "only staff and admin registrations need approval")
	}
	admin, err := s.loadApprover(ctx, approver)
	if err != nil {
		return nil, err
	}
	if role == domain.RoleAdmin && !admin.IsSuper() {
		return nil, domain.ErrSuperAdminOnly
	}
	return s.accounts.ListPending(ctx, role)
}

// authorize applies the approver rules in order: self-targeting is refused
// before privilege is considered.
func (s *ApprovalServiceImpl) authorize(ctx context.Context, approver *domain.TokenClaims, role domain.Role, id uint) (*domain.Account, error) {
	admin, err := s.loadApprover(ctx, approver)
	if err != nil {
		return nil, err
	}
	if role == domain.RoleAdmin {
		if id == admin.ID {
			return nil, domain.ErrSelfApproval
		}
		if !admin.IsSuper() {
			return nil, domain.ErrSuperAdminOnly
		}
	}
	return admin, nil
}

// loadApprover re-reads the approver so that a demoted or suspended admin
// holding an old token cannot act.
func (s *ApprovalServiceImpl) loadApprover(ctx context.Context, approver *domain.TokenClaims) (*domain.Account, error) {
	if approver == nil {
		return nil, domain.ErrAuthenticationMissing
	}
	if approver.Type != domain.TokenFull || approver.Role != domain.RoleAdmin {
		return nil, domain.ErrInsufficientRole
	}
	admin, err := s.accounts.FindByID(ctx, domain.RoleAdmin, approver.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, domain.ErrInsufficientRole
		}
		return nil, err
	}
	if !admin.State.CanAuthenticate() {
		return nil, domain.ErrInsufficientRole
	}
	return admin, nil
}
