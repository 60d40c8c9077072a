package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/repository"
	"github.com/spec-kit/request-service/internal/workflow"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// AssignmentService handles request assignment. Assignment is independent of
// status: any non-terminal request may be reassigned to any active employee.
type AssignmentService struct {
	requests   repository.RequestRepository
	employees  repository.EmployeeRepository
	dispatcher events.Dispatcher
	audit      *AuditService
	logger     *zap.Logger
	now        Clock
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	RequestRepo  repository.RequestRepository
	EmployeeRepo repository.EmployeeRepository
	Dispatcher   events.Dispatcher
	Audit        *AuditService
	Logger       *zap.Logger
	Clock        Clock
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		requests:   deps.RequestRepo,
		employees:  deps.EmployeeRepo,
		dispatcher: deps.Dispatcher,
		audit:      deps.Audit,
		logger:     defaultLogger(deps.Logger),
		now:        defaultClock(deps.Clock),
	}
}

// AssignEmployee sets the assignee and stamps assignedAt, overwriting any
// previous assignment.
func (s *AssignmentService) AssignEmployee(ctx context.Context, actor domain.Subject, requestID, employeeID, notes string) (*domain.ServiceRequest, error) {
	if err := requireText(map[string]string{"employee_id": employeeID}); err != nil {
		return nil, err
	}
	assignee, err := s.employees.GetByID(ctx, employeeID)
	if err != nil {
		return nil, lookupError(err, "employee", employeeID)
	}
	if assignee.Status != domain.PrincipalStatusActive {
		return nil, apperrors.NewBadRequest("employee is inactive", "الموظف غير نشط",
			map[string]any{"employee_id": employeeID})
	}

	var previous *string
	updated, err := s.requests.Assign(ctx, requestID, func(req *domain.ServiceRequest) error {
		if workflow.IsTerminal(req.Status) {
			return apperrors.NewBadRequest("request is closed and cannot be assigned",
				"الطلب مغلق ولا يمكن إسناده", map[string]any{"status": req.Status})
		}
		previous = req.AssignedToID
		now := s.now()
		id := assignee.ID
		req.AssignedToID = &id
		req.AssignedAt = &now
		req.AssignmentNotes = strings.TrimSpace(notes)
		return nil
	})
	if err != nil {
		return nil, lookupError(err, "request", requestID)
	}

	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:       events.EventRequestAssigned,
		EntityType: "request",
		EntityID:   updated.ID,
		Actor:      events.ActorOf(actor),
		Payload: events.RequestAssignedPayload{
			RequestNumber: updated.RequestNumber,
			CustomerID:    updated.CustomerID,
			AssigneeID:    assignee.ID,
			Notes:         updated.AssignmentNotes,
		},
	})
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditRequestAssigned,
		EntityType: "request",
		EntityID:   updated.ID,
		OldValues:  map[string]any{"assigned_to_id": previous},
		NewValues:  map[string]any{"assigned_to_id": assignee.ID},
	})
	return updated, nil
}
