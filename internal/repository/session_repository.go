package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/refresh-session-auth/internal/domain"
	"github.com/sandeepkv93/refresh-session-auth/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository persists refresh sessions. Rows are only ever inserted or
// have revoked_at set; nothing is deleted.
type SessionRepository interface {
	Insert(ctx context.Context, s *domain.Session) error
	ListActiveForUser(ctx context.Context, userID uint) ([]domain.Session, error)
	RevokeIfActive(ctx context.Context, sessionID uint) (bool, error)
	Rotate(ctx context.Context, oldSessionID uint, next *domain.Session) (bool, error)
	RevokeAllForUser(ctx context.Context, userID uint) (int64, error)
	RevokeByIDForUser(ctx context.Context, userID, sessionID uint) (bool, error)
	RevokeOthersForUser(ctx context.Context, userID, keepSessionID uint) (int64, error)
	FindByID(ctx context.Context, sessionID uint) (*domain.Session, error)
}

type GormSessionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &GormSessionRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *GormSessionRepository) Insert(ctx context.Context, s *domain.Session) error {
	err := insertSession(r.db.WithContext(ctx), s)
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "insert", "error")
		return err
	}
	observability.RecordRepositoryOperation(ctx, "session", "insert", "success")
	return nil
}

// ListActiveForUser returns unrevoked rows in id order. Expired rows are
// included so the caller can tell an expired session from a missing one.
func (r *GormSessionRepository) ListActiveForUser(ctx context.Context, userID uint) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Order("id ASC").
		Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "list_active_for_user", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "list_active_for_user", "success")
	return sessions, nil
}

// RevokeIfActive sets revoked_at only while it is still NULL. The conditional
// UPDATE is the compare-and-set; it reports whether this call won.
func (r *GormSessionRepository) RevokeIfActive(ctx context.Context, sessionID uint) (bool, error) {
	changed, err := revokeIfActive(r.db.WithContext(ctx), sessionID, r.now())
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_if_active", "error")
		return false, err
	}
	if !changed {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_if_active", "noop")
		return false, nil
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke_if_active", "success")
	return true, nil
}

// Rotate revokes oldSessionID and inserts next in one transaction. When the
// old row was already revoked nothing is written and false is returned.
func (r *GormSessionRepository) Rotate(ctx context.Context, oldSessionID uint, next *domain.Session) (bool, error) {
	var rotated bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		changed, err := revokeIfActive(tx, oldSessionID, r.now())
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		if err := insertSession(tx, next); err != nil {
			return err
		}
		rotated = true
		return nil
	})
	if err != nil {
		observability.RecordRepositoryOperation(ctx, "session", "rotate", "error")
		return false, err
	}
	if !rotated {
		observability.RecordRepositoryOperation(ctx, "session", "rotate", "lost_race")
		return false, nil
	}
	observability.RecordRepositoryOperation(ctx, "session", "rotate", "success")
	return true, nil
}

func (r *GormSessionRepository) RevokeAllForUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", r.now())
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_all_for_user", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke_all_for_user", "success")
	return res.RowsAffected, nil
}

// RevokeByIDForUser is RevokeIfActive scoped to an owner. A session belonging
// to someone else is left untouched and reported as unchanged.
func (r *GormSessionRepository) RevokeByIDForUser(ctx context.Context, userID, sessionID uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND user_id = ? AND revoked_at IS NULL", sessionID, userID).
		Update("revoked_at", r.now())
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_by_id_for_user", "error")
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_by_id_for_user", "noop")
		return false, nil
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke_by_id_for_user", "success")
	return true, nil
}

func (r *GormSessionRepository) RevokeOthersForUser(ctx context.Context, userID, keepSessionID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND id <> ? AND revoked_at IS NULL", userID, keepSessionID).
		Update("revoked_at", r.now())
	if res.Error != nil {
		observability.RecordRepositoryOperation(ctx, "session", "revoke_others_for_user", "error")
		return 0, res.Error
	}
	observability.RecordRepositoryOperation(ctx, "session", "revoke_others_for_user", "success")
	return res.RowsAffected, nil
}

func (r *GormSessionRepository) FindByID(ctx context.Context, sessionID uint) (*domain.Session, error) {
	var s domain.Session
	err := r.db.WithContext(ctx).First(&s, sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(ctx, "session", "find_by_id", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(ctx, "session", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(ctx, "session", "find_by_id", "success")
	return &s, nil
}

func insertSession(tx *gorm.DB, s *domain.Session) error {
	s.ID = 0
	s.RevokedAt = nil
	s.CreatedAt = time.Time{}
	return tx.Create(s).Error
}

func revokeIfActive(tx *gorm.DB, sessionID uint, now time.Time) (bool, error) {
	res := tx.Model(&domain.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
