package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"spot-game-server/entitylog"
	"spot-game-server/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
)

var (
	ErrUsernameActive = errors.New("username already logged in")
	ErrDeviceActive   = errors.New("device already has active user")
)

// Sessions tracks logged-in devices. A username or device with an active
// session cannot log in again until it logs out or expires. Verify also
// records activity, and ExpireInactive logs out every session idle since
// before.
type Sessions interface {
	Login(ctx context.Context, username, deviceID string) (models.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Verify(ctx context.Context, sessionID string) (models.Session, error)
	ExpireInactive(ctx context.Context, before time.Time) (int64, error)
}

type GormSessions struct {
	DB    *gorm.DB
	clock clockwork.Clock
}

func (s *GormSessions) Login(ctx context.Context, username, deviceID string) (models.Session, error) {
	now := s.clock.Now()
	sess := models.Session{
		ID:       uuid.New().String(),
		Username: username,
		DeviceID: deviceID,
		Active:   true,
		LastSeen: now,
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active []models.Session
		err := tx.Where("active AND (username = ? OR device_id = ?)", username, deviceID).
			Find(&active).Error
		if err != nil {
			return err
		}
		for _, other := range active {
			if other.Username == username {
				return ErrUsernameActive
			}
		}
		if len(active) > 0 {
			return ErrDeviceActive
		}
		return tx.Create(&sess).Error
	})
	if errors.Is(err, ErrUsernameActive) || errors.Is(err, ErrDeviceActive) {
		return models.Session{}, err
	}
	if err != nil {
		return models.Session{}, dbErr("login", err)
	}
	return sess, nil
}

func (s *GormSessions) Logout(ctx context.Context, sessionID string) error {
	res := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND active", sessionID).
		Update("active", false)
	if res.Error != nil {
		return dbErr("logout", res.Error)
	}
	if res.RowsAffected == 0 {
		return entitylog.ErrNotFound
	}
	return nil
}

func (s *GormSessions) Verify(ctx context.Context, sessionID string) (models.Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return models.Session{}, entitylog.ErrNotFound
	}
	db := s.DB.WithContext(ctx)
	var sess models.Session
	if err := db.Where("id = ? AND active", sessionID).Take(&sess).Error; err != nil {
		return models.Session{}, dbErr("verify session", err)
	}
	sess.LastSeen = s.clock.Now()
	if err := db.Model(&sess).Update("last_seen", sess.LastSeen).Error; err != nil {
		return models.Session{}, dbErr("verify session", err)
	}
	return sess, nil
}

func (s *GormSessions) ExpireInactive(ctx context.Context, before time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).Model(&models.Session{}).
		Where("active AND last_seen < ?", before).
		Update("active", false)
	return res.RowsAffected, dbErr("expire sessions", res.Error)
}

type MemorySessions struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	sessions map[string]*models.Session
}

func NewMemorySessions(clock clockwork.Clock) *MemorySessions {
	return &MemorySessions{clock: clock, sessions: make(map[string]*models.Session)}
}

func (s *MemorySessions) Login(_ context.Context, username, deviceID string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	for _, other := range s.sessions {
		if !other.Active {
			continue
		}
		if other.Username == username {
			return models.Session{}, ErrUsernameActive
		}
		if other.DeviceID == deviceID {
			return models.Session{}, ErrDeviceActive
		}
	}
	sess := &models.Session{
		ID:       uuid.New().String(),
		Username: username,
		DeviceID: deviceID,
		Active:   true,
		LastSeen: now,
	}
	sess.CreatedAt, sess.UpdatedAt = now, now
	s.sessions[sess.ID] = sess
	return *sess, nil
}

func (s *MemorySessions) Logout(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || !sess.Active {
		return entitylog.ErrNotFound
	}
	sess.Active = false
	sess.UpdatedAt = s.clock.Now()
	return nil
}

func (s *MemorySessions) Verify(_ context.Context, sessionID string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || !sess.Active {
		return models.Session{}, entitylog.ErrNotFound
	}
	sess.LastSeen = s.clock.Now()
	return *sess, nil
}

func (s *MemorySessions) ExpireInactive(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, sess := range s.sessions {
		if sess.Active && sess.LastSeen.Before(before) {
			sess.Active = false
			n++
		}
	}
	return n, nil
}
