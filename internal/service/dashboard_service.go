package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
	apperrors "github.com/spec-kit/request-service/pkg/util/errorutil"
)

const (
	dashboardCacheKey = "dashboard:stats"
	recentWindow      = 30 * 24 * time.Hour
)

// DashboardService aggregates headline numbers for employees.
type DashboardService struct {
	requests  repository.RequestRepository
	customers repository.CustomerRepository
	employees repository.EmployeeRepository
	invoices  repository.InvoiceRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	logger    *zap.Logger
	now       Clock
}

// DashboardDependencies bundles collaborators. Cache is optional.
type DashboardDependencies struct {
	RequestRepo  repository.RequestRepository
	CustomerRepo repository.CustomerRepository
	EmployeeRepo repository.EmployeeRepository
	InvoiceRepo  repository.InvoiceRepository
	Cache        *redis.Client
	CacheTTL     time.Duration
	Logger       *zap.Logger
	Clock        Clock
}

// NewDashboardService creates the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	return &DashboardService{
		requests:  deps.RequestRepo,
		customers: deps.CustomerRepo,
		employees: deps.EmployeeRepo,
		invoices:  deps.InvoiceRepo,
		cache:     deps.Cache,
		cacheTTL:  deps.CacheTTL,
		logger:    defaultLogger(deps.Logger),
		now:       defaultClock(deps.Clock),
	}
}

// Stats returns the dashboard numbers, served from cache when fresh.
func (s *DashboardService) Stats(ctx context.Context) (*domain.DashboardStats, error) {
	if cached := s.cached(ctx); cached != nil {
		return cached, nil
	}

	var (
		stats  domain.DashboardStats
		totals repository.BillingTotals
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.requests.CountByStatus(gctx)
		if err != nil {
			return err
		}
		byStatus := make(map[domain.RequestStatus]int, len(domain.RequestStatuses))
		for _, status := range domain.RequestStatuses {
			byStatus[status] = counts[status]
			stats.TotalRequests += counts[status]
		}
		stats.RequestsByStatus = byStatus
		return nil
	})
	g.Go(func() error {
		n, err := s.requests.CountCreatedSince(gctx, s.now().Add(-recentWindow))
		stats.RecentRequests = n
		return err
	})
	g.Go(func() error {
		n, err := s.customers.Count(gctx)
		stats.TotalCustomers = n
		return err
	})
	g.Go(func() error {
		n, err := s.employees.CountActive(gctx)
		stats.ActiveEmployees = n
		return err
	})
	g.Go(func() error {
		var err error
		totals, err = s.invoices.Totals(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.MapError(err)
	}
	stats.InvoicedAmount = totals.Invoiced
	stats.CollectedAmount = totals.Collected
	stats.OutstandingAmount = totals.Outstanding

	s.store(ctx, &stats)
	return &stats, nil
}

func (s *DashboardService) cached(ctx context.Context) *domain.DashboardStats {
	if s.cache == nil || s.cacheTTL <= 0 {
		return nil
	}
	data, err := s.cache.Get(ctx, dashboardCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		return nil
	}
	var stats domain.DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil
	}
	return &stats
}

func (s *DashboardService) store(ctx context.Context, stats *domain.DashboardStats) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, data, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.Error(err))
	}
}
