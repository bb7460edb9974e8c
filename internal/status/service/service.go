package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"trellis/internal/status/models"
	id "trellis/pkg/domain"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/sentinel"
	"trellis/pkg/platform/tx"
	"trellis/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, st *models.Status) error
	FindByID(ctx context.Context, statusID id.StatusID) (*models.Status, error)
	FindByName(ctx context.Context, name string) (*models.Status, error)
	List(ctx context.Context) ([]models.Status, error)
}

// Service manages the status catalog.
type Service struct {
	store  Store
	tx     tx.Runner
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, runner tx.Runner, opts ...Option) *Service {
	s := &Service{store: store, tx: runner}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) List(ctx context.Context) ([]models.Status, error) {
	var list []models.Status
	err := s.tx.RunReadOnly(ctx, func(ctx context.Context) error {
		var err error
		list, err = s.store.List(ctx)
		return err
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list statuses")
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, statusID id.StatusID) (*models.Status, error) {
	st, err := s.store.FindByID(ctx, statusID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "status not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load status")
	}
	return st, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*models.Status, error) {
	st, err := s.store.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "status not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load status")
	}
	return st, nil
}

// Default returns the first status in catalog order.
func (s *Service) Default(ctx context.Context) (*models.Status, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound, "no statuses are configured")
	}
	return &list[0], nil
}

// Lookup resolves the given ids; ids with no status row are absent.
func (s *Service) Lookup(ctx context.Context, ids []id.StatusID) (map[id.StatusID]models.Status, error) {
	list, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[id.StatusID]struct{}, len(ids))
	for _, statusID := range ids {
		wanted[statusID] = struct{}{}
	}
	out := make(map[id.StatusID]models.Status, len(ids))
	for _, st := range list {
		if _, ok := wanted[st.ID]; ok {
			out[st.ID] = st
		}
	}
	return out, nil
}

// Create appends a status at the end of the catalog.
func (s *Service) Create(ctx context.Context, name string) (*models.Status, error) {
	var st *models.Status
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		list, err := s.List(ctx)
		if err != nil {
			return err
		}
		st, err = models.NewStatus(id.StatusID(uuid.New()), name, len(list), requestcontext.Now(ctx))
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		if err := s.store.Create(ctx, st); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "status name is already in use")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "status_created", "status_id", st.ID.String(), "name", st.Name)
	return st, nil
}

// Seed creates each named status that does not exist yet. Existing names are
// left alone so seeding is safe on every start. Each name is its own unit of
// work: a postgres transaction cannot continue past a failed insert.
func (s *Service) Seed(ctx context.Context, names []string) error {
	for _, name := range names {
		_, err := s.GetByName(ctx, name)
		if err == nil {
			continue
		}
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return err
		}
		if _, err := s.Create(ctx, name); err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
			return err
		}
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
