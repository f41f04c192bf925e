package run

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/hairizuanbinnoorazman/shotdiff/logger"
	"gorm.io/gorm"
)

// SQLStore implements the Store interface using GORM.
type SQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewSQLStore creates a new GORM-backed run store.
func NewSQLStore(db *gorm.DB, log logger.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new run in the database.
func (s *SQLStore) Create(ctx context.Context, r *Run) error {
	if r.Status == "" {
		r.Status = StatusPending
	}

	if err := r.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		s.logger.Error(ctx, "failed to create run", map[string]interface{}{
			"error":       err.Error(),
			"config_path": r.ConfigPath,
		})
		return err
	}

	s.logger.Info(ctx, "run created", map[string]interface{}{
		"run_id":      r.ID,
		"config_path": r.ConfigPath,
	})

	return nil
}

// GetByID retrieves a run by its ID.
func (s *SQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Run, error) {
	var r Run
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&r).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		s.logger.Error(ctx, "failed to get run by ID", map[string]interface{}{
			"error":  err.Error(),
			"run_id": id,
		})
		return nil, err
	}

	return &r, nil
}

// Update updates a run with the given setters.
func (s *SQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(r); err != nil {
			return err
		}
	}

	return s.save(ctx, r, "run updated")
}

// List retrieves runs, newest first.
func (s *SQLStore) List(ctx context.Context, limit, offset int) ([]*Run, error) {
	var runs []*Run
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list runs", map[string]interface{}{
			"error":  err.Error(),
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}

	return runs, nil
}

// Count returns the total number of runs.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Run{}).
		Count(&count).Error

	if err != nil {
		s.logger.Error(ctx, "failed to count runs", map[string]interface{}{
			"error": err.Error(),
		})
		return 0, err
	}

	return int(count), nil
}

// Start marks a run as started.
func (s *SQLStore) Start(ctx context.Context, id uuid.UUID) error {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.Start(); err != nil {
		return err
	}

	return s.save(ctx, r, "run started")
}

// Complete marks a run as finished with a final status.
func (s *SQLStore) Complete(ctx context.Context, id uuid.UUID, status Status, message string) error {
	r, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.Complete(status, message); err != nil {
		return err
	}

	return s.save(ctx, r, "run completed")
}

// AddResults stores comparison results for a run.
func (s *SQLStore) AddResults(ctx context.Context, id uuid.UUID, results []*Result) error {
	if len(results) == 0 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}

	for _, res := range results {
		res.RunID = id
	}
	if err := s.db.WithContext(ctx).CreateInBatches(results, 100).Error; err != nil {
		s.logger.Error(ctx, "failed to add run results", map[string]interface{}{
			"error":  err.Error(),
			"run_id": id,
			"count":  len(results),
		})
		return err
	}

	s.logger.Debug(ctx, "run results added", map[string]interface{}{
		"run_id": id,
		"count":  len(results),
	})
	return nil
}

// ListResults returns the results of a run ordered by label and size.
func (s *SQLStore) ListResults(ctx context.Context, id uuid.UUID) ([]*Result, error) {
	var results []*Result
	err := s.db.WithContext(ctx).
		Where("run_id = ?", id).
		Order("label ASC").
		Find(&results).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list run results", map[string]interface{}{
			"error":  err.Error(),
			"run_id": id,
		})
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Label != results[j].Label {
			return results[i].Label < results[j].Label
		}
		return sizeWidth(results[i].Size) < sizeWidth(results[j].Size)
	})
	return results, nil
}

func sizeWidth(size string) int {
	w, _, _ := strings.Cut(size, "x")
	n, _ := strconv.Atoi(w)
	return n
}

func (s *SQLStore) save(ctx context.Context, r *Run, msg string) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		s.logger.Error(ctx, "failed to save run", map[string]interface{}{
			"error":  err.Error(),
			"run_id": r.ID,
		})
		return err
	}

	s.logger.Info(ctx, msg, map[string]interface{}{
		"run_id": r.ID,
		"status": r.Status,
	})
	return nil
}
