package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Auremas/voxanalyze-mvp/internal/domain/entities"
)

// CallRepository handles call record data operations
type CallRepository struct {
	db *gorm.DB
}

// NewCallRepository creates a new call repository
func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// Create creates a new call record
func (r *CallRepository) Create(ctx context.Context, call *entities.Call) error {
	if call == nil {
		return errors.New("call cannot be nil")
	}
	return r.db.WithContext(ctx).Create(call).Error
}

// FindByID retrieves a call by ID. Returns (nil, nil) when no row exists.
func (r *CallRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Call, error) {
	var call entities.Call
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&call).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &call, nil
}

// FindByUser retrieves all calls uploaded by a user, newest first
func (r *CallRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Call, error) {
	var calls []*entities.Call
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

// FindAll retrieves all calls, newest first
func (r *CallRepository) FindAll(ctx context.Context) ([]*entities.Call, error) {
	var calls []*entities.Call
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

// SaveTranscription stores the transcription document and moves the call
// to the analyzing state.
func (r *CallRepository) SaveTranscription(ctx context.Context, id uuid.UUID, doc datatypes.JSON) error {
	return r.db.WithContext(ctx).
		Model(&entities.Call{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"transcription": doc,
			"status":        entities.CallStatusAnalyzing,
			"updated_at":    time.Now(),
		}).Error
}

// SaveAnalysis stores the analysis document and moves the call to the
// completed state.
func (r *CallRepository) SaveAnalysis(ctx context.Context, id uuid.UUID, doc datatypes.JSON) error {
	return r.db.WithContext(ctx).
		Model(&entities.Call{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"analysis":   doc,
			"status":     entities.CallStatusCompleted,
			"updated_at": time.Now(),
		}).Error
}

// MarkFailed moves the call to the failed state with an error message.
// The message must already be sanitized by the caller.
func (r *CallRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&entities.Call{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     entities.CallStatusFailed,
			"last_error": errMsg,
			"updated_at": time.Now(),
		}).Error
}

// Delete removes the call row. Deleting a missing row is not an error.
func (r *CallRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entities.Call{}, id).Error
}

// FindStuck finds calls stuck in a non-terminal processing state for
// longer than the threshold, oldest first.
func (r *CallRepository) FindStuck(ctx context.Context, threshold time.Duration, limit int) ([]*entities.Call, error) {
	var calls []*entities.Call
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []entities.CallStatus{
			entities.CallStatusPending,
			entities.CallStatusTranscribing,
			entities.CallStatusAnalyzing,
		}).
		Where("updated_at < ?", time.Now().Add(-threshold)).
		Order("updated_at ASC").
		Limit(limit).
		Find(&calls).Error; err != nil {
		return nil, err
	}
	return calls, nil
}

// Claim atomically transitions a call from one status to another and
// reports whether this caller won the transition. Concurrent workers
// resuming the same stuck call race on this update; only one sees a
// row affected.
func (r *CallRepository) Claim(ctx context.Context, id uuid.UUID, from, to entities.CallStatus) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.Call{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClaimStale atomically claims a stuck call for resumption. The
// updated_at guard makes concurrent workers race safely; refreshing it
// means the loser's condition no longer matches.
func (r *CallRepository) ClaimStale(ctx context.Context, id uuid.UUID, status entities.CallStatus, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.Call{}).
		Where("id = ? AND status = ? AND updated_at < ?", id, status, staleBefore).
		Update("updated_at", time.Now())
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Touch refreshes updated_at so an in-flight call is not reclaimed as stuck
func (r *CallRepository) Touch(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&entities.Call{}).
		Where("id = ?", id).
		Update("updated_at", time.Now()).Error
}
