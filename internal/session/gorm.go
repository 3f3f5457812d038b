package session

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/krishisahay/krishisahay-go/internal/datastore"
	"github.com/krishisahay/krishisahay-go/internal/errors"
)

// DBStore keeps sessions in the application database.
type DBStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDBStore returns a store on db. The sessions table is migrated by the datastore.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db, now: time.Now}
}

func (s *DBStore) Create(ctx context.Context, token, username string, ttl time.Duration) error {
	return s.db.WithContext(ctx).Create(&datastore.Session{
		Token:     token,
		Username:  username,
		ExpiresAt: s.now().Add(ttl),
	}).Error
}

func (s *DBStore) Lookup(ctx context.Context, token string, ttl time.Duration) (string, error) {
	now := s.now()
	var sess datastore.Session
	err := s.db.WithContext(ctx).
		Where("token = ? AND expires_at > ?", token, now).
		First(&sess).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", noSession()
	case err != nil:
		return "", sessionError(err, "lookup")
	}

	if err := s.db.WithContext(ctx).Model(&datastore.Session{}).
		Where("token = ?", token).
		Update("expires_at", now.Add(ttl)).Error; err != nil {
		return "", sessionError(err, "refresh")
	}
	return sess.Username, nil
}

func (s *DBStore) Delete(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&datastore.Session{}).Error
}

func (s *DBStore) Sweep(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&datastore.Session{})
	return result.RowsAffected, result.Error
}
