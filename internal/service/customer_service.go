package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

// CustomerProfileInput carries optional profile edits. Email, type and
// status are not editable here.
type CustomerProfileInput struct {
	FullName           *string
	FullNameAr         *string
	Phone              *string
	NationalID         *string
	OrganizationName   *string
	OrganizationNameAr *string
	CommercialRegister *string
	Address            *string
	City               *string
}

// CustomerService serves customer profiles and customer administration.
type CustomerService struct {
	customers repository.CustomerRepository
	refresh   repository.RefreshTokenRepository
	audit     *AuditService
	logger    *zap.Logger
}

// NewCustomerService creates the service.
func NewCustomerService(customers repository.CustomerRepository, refresh repository.RefreshTokenRepository, audit *AuditService, logger *zap.Logger) *CustomerService {
	return &CustomerService{customers: customers, refresh: refresh, audit: audit, logger: defaultLogger(logger)}
}

// Get returns a customer by id.
func (s *CustomerService) Get(ctx context.Context, id string) (*domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "customer", id)
	}
	return customer, nil
}

// UpdateProfile applies the caller's own profile edits.
func (s *CustomerService) UpdateProfile(ctx context.Context, id string, input CustomerProfileInput) (*domain.Customer, error) {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	assign(&customer.FullName, input.FullName)
	assign(&customer.FullNameAr, input.FullNameAr)
	assign(&customer.Phone, input.Phone)
	assign(&customer.NationalID, input.NationalID)
	assign(&customer.OrganizationName, input.OrganizationName)
	assign(&customer.OrganizationNameAr, input.OrganizationNameAr)
	assign(&customer.CommercialRegister, input.CommercialRegister)
	assign(&customer.Address, input.Address)
	assign(&customer.City, input.City)

	if err := requireText(map[string]string{"full_name": customer.FullName}); err != nil {
		return nil, err
	}
	if missing := customer.MissingRegistrationFields(); len(missing) > 0 {
		return nil, apperrors.NewValidationError(
			"required fields are missing for this customer type",
			"حقول مطلوبة مفقودة لهذا النوع من العملاء",
			map[string]any{"fields": missing, "customer_type": customer.CustomerType})
	}
	if err := s.customers.Update(ctx, customer); err != nil {
		return nil, apperrors.MapError(err)
	}
	return customer, nil
}

// List returns customers matching filter.
func (s *CustomerService) List(ctx context.Context, filter repository.CustomerFilter) ([]domain.Customer, int, error) {
	customers, total, err := s.customers.List(ctx, filter)
	if err != nil {
		return nil, 0, apperrors.MapError(err)
	}
	return customers, total, nil
}

// SetStatus activates or deactivates a customer. Deactivation revokes the
// customer's refresh tokens.
func (s *CustomerService) SetStatus(ctx context.Context, actor domain.Subject, id string, status domain.PrincipalStatus) (*domain.Customer, error) {
	if status != domain.PrincipalStatusActive && status != domain.PrincipalStatusInactive {
		return nil, apperrors.NewValidationError("status is invalid", "الحالة غير صالحة", map[string]any{"status": status})
	}
	customer, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	old := customer.Status
	customer.Status = status
	if err := s.customers.Update(ctx, customer); err != nil {
		return nil, apperrors.MapError(err)
	}
	if status == domain.PrincipalStatusInactive {
		if err := s.refresh.RevokeAllForUser(ctx, customer.ID, domain.SubjectTypeCustomer); err != nil {
			s.logger.Warn("refresh token revocation failed", zap.String("customer_id", customer.ID), zap.Error(err))
		}
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditCustomerStatus,
		EntityType: "customer",
		EntityID:   customer.ID,
		OldValues:  map[string]any{"status": old},
		NewValues:  map[string]any{"status": status},
	})
	return customer, nil
}

// Delete removes a customer and, through the schema, their requests.
// Customers with invoices cannot be deleted.
func (s *CustomerService) Delete(ctx context.Context, actor domain.Subject, id string) error {
	customer, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.customers.Delete(ctx, id); err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.NewConflict("customer has invoices", "لدى العميل فواتير", map[string]any{"customer_id": id})
		}
		return lookupError(err, "customer", id)
	}
	if err := s.refresh.RevokeAllForUser(ctx, id, domain.SubjectTypeCustomer); err != nil {
		s.logger.Warn("refresh token revocation failed", zap.String("customer_id", id), zap.Error(err))
	}
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     AuditCustomerDeleted,
		EntityType: "customer",
		EntityID:   id,
		OldValues:  map[string]any{"email": customer.Email},
	})
	return nil
}
