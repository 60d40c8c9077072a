package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/request-service/internal/domain"
	"github.com/spec-kit/request-service/internal/repository"
)

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = newID()
	n.CreatedAt = r.s.now()
	r.s.track(n.ID)
	r.s.notifications[n.ID] = *n
	return nil
}

func owns(n domain.Notification, recipient domain.Subject) bool {
	return n.RecipientID == recipient.SubjectID() && n.RecipientType == recipient.SubjectType()
}

func (r *notificationRepo) List(ctx context.Context, filter repository.NotificationFilter) ([]domain.Notification, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	recipient := domain.Actor{ID: filter.RecipientID, Type: filter.RecipientType}
	matched := []domain.Notification{}
	for _, n := range r.s.notifications {
		if !owns(n, recipient) {
			continue
		}
		if filter.UnreadOnly && n.ReadAt != nil {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool {
		return r.s.newerFirst(matched[i].ID, matched[i].CreatedAt, matched[j].ID, matched[j].CreatedAt)
	})
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, recipient domain.Subject) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, n := range r.s.notifications {
		if owns(n, recipient) && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, id string, recipient domain.Subject, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || !owns(n, recipient) {
		return errNoRows
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
		r.s.notifications[n.ID] = n
	}
	return nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, recipient domain.Subject, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, n := range r.s.notifications {
		if owns(n, recipient) && n.ReadAt == nil {
			n.ReadAt = &at
			r.s.notifications[n.ID] = n
			count++
		}
	}
	return count, nil
}

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(ctx context.Context, entry *domain.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = newID()
	entry.CreatedAt = r.s.now()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

// List returns newest entries first; the slice is append-only so reverse
// index order is insertion order.
func (r *auditRepo) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	matched := []domain.AuditEntry{}
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		e := r.s.audit[i]
		if filter.ActorID != nil && (e.ActorID == nil || *e.ActorID != *filter.ActorID) {
			continue
		}
		if filter.EntityType != nil && e.EntityType != *filter.EntityType {
			continue
		}
		if filter.EntityID != nil && e.EntityID != *filter.EntityID {
			continue
		}
		if filter.Action != nil && e.Action != *filter.Action {
			continue
		}
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}
		matched = append(matched, e)
	}
	return page(matched, filter.Limit, filter.Offset), len(matched), nil
}
