package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"genmart/internal/model"
	"genmart/internal/queue"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// serviceFlow is the forward order of ticket states; staff may move a
// ticket to any later state, never back.
var serviceFlow = []model.ServiceStatus{
	model.ServicePending,
	model.ServiceReviewing,
	model.ServiceQuoted,
	model.ServiceApproved,
	model.ServiceInProgress,
	model.ServiceCompleted,
}

func serviceStep(s model.ServiceStatus) int {
	for i, st := range serviceFlow {
		if st == s {
			return i
		}
	}
	return -1
}

// ParseServiceStatus accepts QUOTE_SENT as the older spelling of QUOTED.
func ParseServiceStatus(s string) (model.ServiceStatus, bool) {
	st := model.ServiceStatus(strings.ToUpper(strings.TrimSpace(s)))
	if st == "QUOTE_SENT" {
		return model.ServiceQuoted, true
	}
	if st == model.ServiceCancelled || serviceStep(st) >= 0 {
		return st, true
	}
	return "", false
}

func canTransitionService(from, to model.ServiceStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == model.ServiceCancelled {
		return true
	}
	return serviceStep(to) > serviceStep(from)
}

// needsQuote reports whether reaching to requires a quote on the ticket:
// APPROVED and every later step do.
func needsQuote(to model.ServiceStatus) bool {
	return to != model.ServiceCancelled && serviceStep(to) >= serviceStep(model.ServiceApproved)
}

// ServiceRequestInput is a customer's new ticket.
type ServiceRequestInput struct {
	ServiceType   model.ServiceType
	Brand         string
	Model         string
	Description   string
	PreferredDate *time.Time
	Address       string
	City          string
	Phone         string
	Priority      model.Priority
}

// ServiceTransition is a staff status change.
type ServiceTransition struct {
	Status       string
	QuotedAmount decimal.NullDecimal
	Note         string
}

// ServiceRequestServiceDeps bundles collaborators for the service-request service.
type ServiceRequestServiceDeps struct {
	DB     *gorm.DB
	Events EventPublisher
	Clock  func() time.Time
	Logger *zap.Logger
}

type ServiceRequestService struct {
	db     *gorm.DB
	events EventPublisher
	clock  func() time.Time
	logger *zap.Logger
}

func NewServiceRequestService(deps ServiceRequestServiceDeps) (*ServiceRequestService, error) {
	if deps.DB == nil {
		return nil, errors.New("service request service: db is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServiceRequestService{db: deps.DB, events: deps.Events, clock: clock, logger: logger}, nil
}

func serviceEvent(now time.Time, typ string, r *model.ServiceRequest) queue.Event {
	ev := newEvent(now, typ, "service_request", fmt.Sprint(r.ID))
	ev.UserID = r.UserID
	ev.Email = r.Email
	ev.Reference = r.TicketNo
	ev.Status = string(r.Status)
	ev.Payload = map[string]string{"service_type": string(r.ServiceType)}
	if r.QuotedAmount.Valid {
		ev.Payload["quoted_amount"] = r.QuotedAmount.Decimal.StringFixed(2)
	}
	return ev
}

// Create opens a PENDING ticket for actor.
func (s *ServiceRequestService) Create(ctx context.Context, actor Actor, in ServiceRequestInput) (*model.ServiceRequest, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	switch in.ServiceType {
	case model.ServiceRepair, model.ServiceMaintenance, model.ServiceInstallation, model.ServiceInspection:
	default:
		return nil, fmt.Errorf("%w: unknown service type %q", ErrInvalidInput, in.ServiceType)
	}
	priority := in.Priority
	switch priority {
	case "":
		priority = model.PriorityNormal
	case model.PriorityLow, model.PriorityNormal, model.PriorityHigh, model.PriorityUrgent:
	default:
		return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, in.Priority)
	}
	now := s.clock()
	r := &model.ServiceRequest{
		TicketNo:      humanNumber("SR", now),
		UserID:        actor.UserID,
		Email:         actor.Email,
		ServiceType:   in.ServiceType,
		Brand:         cleanText(in.Brand),
		ModelName:     cleanText(in.Model),
		Description:   cleanText(in.Description),
		PreferredDate: in.PreferredDate,
		Address:       cleanText(in.Address),
		City:          cleanText(in.City),
		Phone:         strings.TrimSpace(in.Phone),
		Priority:      priority,
		Status:        model.ServicePending,
	}
	if r.Description == "" {
		return nil, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}
	if r.PreferredDate != nil && r.PreferredDate.Before(now.Truncate(24*time.Hour)) {
		return nil, fmt.Errorf("%w: preferred date is in the past", ErrInvalidInput)
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.logger, serviceEvent(now, queue.EventServiceCreated, r))
	return r, nil
}

func (s *ServiceRequestService) load(tx *gorm.DB, actor Actor, id uint) (*model.ServiceRequest, error) {
	var r model.ServiceRequest
	if err := tx.First(&r, id).Error; err != nil {
		return nil, notFoundOr(err, "service request")
	}
	if !actor.CanSee(r.UserID) {
		return nil, fmt.Errorf("%w: service request", ErrNotFound)
	}
	return &r, nil
}

func (s *ServiceRequestService) Get(ctx context.Context, actor Actor, id uint) (*model.ServiceRequest, error) {
	return s.load(s.db.WithContext(ctx), actor, id)
}

func (s *ServiceRequestService) ListMine(ctx context.Context, actor Actor, page Page) (PageResult[model.ServiceRequest], error) {
	q := s.db.WithContext(ctx).Model(&model.ServiceRequest{}).Where("user_id = ?", actor.UserID)
	return findPage[model.ServiceRequest](q, page, "created_at DESC, id DESC")
}

// ListAll is the staff queue, optionally filtered by status.
func (s *ServiceRequestService) ListAll(ctx context.Context, status string, page Page) (PageResult[model.ServiceRequest], error) {
	q := s.db.WithContext(ctx).Model(&model.ServiceRequest{})
	if strings.TrimSpace(status) != "" {
		st, ok := ParseServiceStatus(status)
		if !ok {
			return PageResult[model.ServiceRequest]{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
		q = q.Where("status = ?", st)
	}
	return findPage[model.ServiceRequest](q, page, "created_at DESC, id DESC")
}

// Cancel is the owner's cancellation, allowed from PENDING only.
func (s *ServiceRequestService) Cancel(ctx context.Context, actor Actor, id uint) (*model.ServiceRequest, error) {
	now := s.clock()
	var out *model.ServiceRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.load(tx, actor, id)
		if err != nil {
			return err
		}
		if r.UserID != actor.UserID {
			return fmt.Errorf("%w: service request", ErrNotFound)
		}
		if r.Status != model.ServicePending {
			return reject("service request can only be cancelled while pending")
		}
		res := tx.Model(&model.ServiceRequest{}).
			Where("id = ? AND status = ?", r.ID, model.ServicePending).
			Updates(map[string]any{"status": model.ServiceCancelled, "cancelled_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return reject("service request can only be cancelled while pending")
		}
		r.Status = model.ServiceCancelled
		r.CancelledAt = &now
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.logger, serviceEvent(now, queue.EventServiceStatusChanged, out))
	return out, nil
}

// Transition moves a ticket forward (or cancels it) on behalf of staff.
// QUOTED requires a positive quoted amount; APPROVED and later require that
// the ticket was quoted.
func (s *ServiceRequestService) Transition(ctx context.Context, actor Actor, id uint, t ServiceTransition) (*model.ServiceRequest, error) {
	if !actor.IsStaff() {
		return nil, ErrUnauthorized
	}
	target, ok := ParseServiceStatus(t.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, t.Status)
	}
	if target == model.ServiceQuoted && (!t.QuotedAmount.Valid || !t.QuotedAmount.Decimal.IsPositive()) {
		return nil, fmt.Errorf("%w: quoted_amount must be greater than zero", ErrInvalidInput)
	}
	note := cleanText(t.Note)
	now := s.clock()

	var (
		out  *model.ServiceRequest
		from model.ServiceStatus
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.load(tx, actor, id)
		if err != nil {
			return err
		}
		from = r.Status
		if !canTransitionService(from, target) {
			return reject("service request cannot move from %s to %s", from, target)
		}
		if needsQuote(target) && !r.QuotedAmount.Valid {
			return reject("service request must be quoted before it can move to %s", target)
		}
		updates := map[string]any{"status": target}
		switch target {
		case model.ServiceQuoted:
			updates["quoted_amount"] = t.QuotedAmount
		case model.ServiceCompleted:
			updates["completed_at"] = now
		case model.ServiceCancelled:
			updates["cancelled_at"] = now
		}
		if note != "" {
			updates["staff_notes"] = note
		}
		res := tx.Model(&model.ServiceRequest{}).Where("id = ? AND status = ?", r.ID, from).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: service request changed concurrently", ErrConflict)
		}
		if err := tx.First(r, r.ID).Error; err != nil {
			return err
		}
		out = r
		return writeAudit(tx, now, actor, "service.status", "service_request", fmt.Sprint(r.ID), map[string]any{
			"from": from, "to": target, "note": note,
		})
	})
	if err != nil {
		return nil, err
	}
	ev := serviceEvent(now, queue.EventServiceStatusChanged, out)
	ev.Payload["previous_status"] = string(from)
	publish(ctx, s.events, s.logger, ev)
	return out, nil
}
