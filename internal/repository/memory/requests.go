package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
)

type catalogRepo struct{ s *Store }

func (r *catalogRepo) Create(ctx context.Context, svc *domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.services {
		if existing.Code == svc.Code {
			return uniqueViolation("services_code_key")
		}
	}
	now := r.s.now()
	svc.ID = newID()
	svc.CreatedAt = now
	svc.UpdatedAt = now
	r.s.track(svc.ID)
	r.s.services[svc.ID] = *svc
	return nil
}

func (r *catalogRepo) Update(ctx context.Context, svc *domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.services[svc.ID]
	if !ok {
		return errNoRows
	}
	for id, existing := range r.s.services {
		if id != svc.ID && existing.Code == svc.Code {
			return uniqueViolation("services_code_key")
		}
	}
	svc.ID = stored.ID
	svc.CreatedAt = stored.CreatedAt
	svc.UpdatedAt = r.s.now()
	r.s.services[stored.ID] = *svc
	return nil
}

func (r *catalogRepo) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	svc, ok := r.s.services[id]
	if !ok {
		return nil, errNoRows
	}
	return &svc, nil
}

func (r *catalogRepo) List(ctx context.Context, includeInactive bool) ([]domain.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Service{}
	for _, svc := range r.s.services {
		if !includeInactive && !svc.IsActive {
			continue
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *catalogRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.services[id]; !ok {
		return errNoRows
	}
	for _, req := range r.s.requests {
		if req.ServiceID == id {
			return foreignKeyViolation("service_requests_service_id_fkey")
		}
	}
	delete(r.s.services, id)
	return nil
}

func (r *catalogRepo) CountRequests(ctx context.Context, id string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, req := range r.s.requests {
		if req.ServiceID == id {
			n++
		}
	}
	return n, nil
}

type requestRepo struct{ s *Store }

func (r *requestRepo) Create(ctx context.Context, req *domain.ServiceRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[req.CustomerID]; !ok {
		return foreignKeyViolation("service_requests_customer_id_fkey")
	}
	if _, ok := r.s.services[req.ServiceID]; !ok {
		return foreignKeyViolation("service_requests_service_id_fkey")
	}
	now := r.s.createdAt(req.CreatedAt)
	req.ID = newID()
	req.RequestNumber = r.s.nextNumberLocked(repository.RequestNumberPrefix, now)
	req.Version = 1
	req.CreatedAt = now
	req.UpdatedAt = now
	r.s.track(req.ID)
	r.s.requests[req.ID] = *req
	return nil
}

func (r *requestRepo) GetByID(ctx context.Context, id string) (*domain.ServiceRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	req, ok := r.s.requests[id]
	if !ok {
		return nil, errNoRows
	}
	return &req, nil
}

func (r *requestRepo) List(ctx context.Context, filter repository.RequestFilter) ([]domain.ServiceRequest, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	term := searchTerm(filter.SearchTerm)
	statuses := make(map[domain.RequestStatus]struct{}, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = struct{}{}
	}
	priorities := make(map[domain.RequestPriority]struct{}, len(filter.Priorities))
	for _, p := range filter.Priorities {
		priorities[p] = struct{}{}
	}

	matched := []domain.ServiceRequest{}
	for _, req := range r.s.requests {
		if filter.CustomerID != nil && req.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.ServiceID != nil && req.ServiceID != *filter.ServiceID {
			continue
		}
		if filter.AssignedToID != nil && (req.AssignedToID == nil || *req.AssignedToID != *filter.AssignedToID) {
			continue
		}
		if len(statuses) > 0 {
			if _, ok := statuses[req.Status]; !ok {
				continue
			}
		}
		if len(priorities) > 0 {
			if _, ok := priorities[req.Priority]; !ok {
				continue
			}
		}
		if filter.CreatedFrom != nil && req.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && req.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		if term != "" && !contains(req.RequestNumber, term) && !contains(req.Title, term) && !contains(req.TitleAr, term) {
			continue
		}
		matched = append(matched, req)
	}
	sort.Slice(matched, func(i, j int) bool {
		return r.s.newerFirst(matched[i].ID, matched[i].CreatedAt, matched[j].ID, matched[j].CreatedAt)
	})
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *requestRepo) UpdateDetails(ctx context.Context, id string, mutate repository.RequestMutation) (*domain.ServiceRequest, error) {
	return r.lockAndWrite(id, mutate, func(stored *domain.ServiceRequest, next domain.ServiceRequest) {
		stored.Priority = next.Priority
		stored.Title = next.Title
		stored.TitleAr = next.TitleAr
		stored.Description = next.Description
		stored.DescriptionAr = next.DescriptionAr
		stored.Notes = next.Notes
		stored.NotesAr = next.NotesAr
	})
}

func (r *requestRepo) Transition(ctx context.Context, id string, mutate repository.RequestMutation) (*domain.ServiceRequest, error) {
	return r.lockAndWrite(id, mutate, func(stored *domain.ServiceRequest, next domain.ServiceRequest) {
		stored.Status = next.Status
		stored.RejectionReason = next.RejectionReason
		stored.RejectionReasonAr = next.RejectionReasonAr
		stored.CancellationReason = next.CancellationReason
		stored.CancellationReasonAr = next.CancellationReasonAr
		stored.CompletedAt = next.CompletedAt
		stored.DeliveredAt = next.DeliveredAt
	})
}

func (r *requestRepo) Assign(ctx context.Context, id string, mutate repository.RequestMutation) (*domain.ServiceRequest, error) {
	return r.lockAndWrite(id, mutate, func(stored *domain.ServiceRequest, next domain.ServiceRequest) {
		stored.AssignedToID = next.AssignedToID
		stored.AssignedAt = next.AssignedAt
		stored.AssignmentNotes = next.AssignmentNotes
	})
}

// lockAndWrite holds the store lock across mutate, so concurrent callers see
// each other's writes the way SELECT ... FOR UPDATE serializes them.
func (r *requestRepo) lockAndWrite(
	id string,
	mutate repository.RequestMutation,
	write func(stored *domain.ServiceRequest, next domain.ServiceRequest),
) (*domain.ServiceRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.requests[id]
	if !ok {
		return nil, errNoRows
	}
	working := stored
	if err := mutate(&working); err != nil {
		return nil, err
	}
	write(&stored, working)
	stored.Version++
	stored.UpdatedAt = r.s.now()
	r.s.requests[stored.ID] = stored
	return &stored, nil
}

func (r *requestRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requests[id]; !ok {
		return errNoRows
	}
	for _, inv := range r.s.invoices {
		if inv.RequestID == id {
			return foreignKeyViolation("invoices_request_id_fkey")
		}
	}
	r.s.deleteRequestLocked(id)
	return nil
}

func (s *Store) deleteRequestLocked(id string) {
	delete(s.requests, id)
	for docID, doc := range s.documents {
		if doc.RequestID == id {
			delete(s.documents, docID)
		}
	}
}

func (r *requestRepo) CountByStatus(ctx context.Context) (map[domain.RequestStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[domain.RequestStatus]int)
	for _, req := range r.s.requests {
		counts[req.Status]++
	}
	return counts, nil
}

func (r *requestRepo) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, req := range r.s.requests {
		if !req.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

type documentRepo struct{ s *Store }

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.requests[doc.RequestID]; !ok {
		return foreignKeyViolation("documents_request_id_fkey")
	}
	doc.ID = newID()
	doc.CreatedAt = r.s.now()
	r.s.track(doc.ID)
	r.s.documents[doc.ID] = *doc
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	doc, ok := r.s.documents[id]
	if !ok {
		return nil, errNoRows
	}
	return &doc, nil
}

func (r *documentRepo) ListByRequest(ctx context.Context, requestID string) ([]domain.Document, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Document{}
	for _, doc := range r.s.documents {
		if doc.RequestID == requestID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return r.s.olderFirst(out[i].ID, out[i].CreatedAt, out[j].ID, out[j].CreatedAt)
	})
	return out, nil
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.documents[id]; !ok {
		return errNoRows
	}
	delete(r.s.documents, id)
	return nil
}
