package apikeys

import (
	"errors"
	"log"
	"time"

	"github.com/forgeflow/forgeflow/pkg/forgeflow/metrics"
	"github.com/forgeflow/forgeflow/pkg/forgeflow/models"
	"gorm.io/gorm"
)

// Authenticate resolves a presented API key secret to its owning user.
//
// Every stored key is scanned in id order and bcrypt-compared against the
// secret. Expiry is checked only after a hash match, and an expired match
// does not stop the scan: the first key that matches by hash and passes the
// expiry check wins. This keeps the winner deterministic even if duplicate
// hashes ever exist, so the expiry check must not short-circuit the loop.
//
// On success the winning key's last_used_at is stamped to now before
// returning. The stamp is advisory bookkeeping: if the write fails the
// authentication still succeeds and the failure is logged.
func Authenticate(db *gorm.DB, secret string, now time.Time) (*models.User, error) {
	var keys []models.APIKey
	if err := db.Order("id").Find(&keys).Error; err != nil {
		metrics.AuthAttempts.WithLabelValues(metrics.ResultStoreError).Inc()
		return nil, ErrStoreUnavailable
	}

	var matched *models.APIKey
	for i := range keys {
		if !CheckKey(secret, keys[i].KeyHash) {
			continue
		}
		if keys[i].Expired(now) {
			continue
		}
		matched = &keys[i]
		break
	}

	if matched == nil {
		metrics.AuthAttempts.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, ErrInvalidOrExpired
	}

	if err := db.Model(&models.APIKey{}).Where("id = ?", matched.ID).
		Update("last_used_at", now).Error; err != nil {
		log.Printf("Warning: failed to update last_used_at for API key %d: %v", matched.ID, err)
	}

	var user models.User
	if err := db.First(&user, matched.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.AuthAttempts.WithLabelValues(metrics.ResultMissingUser).Inc()
			return nil, ErrIdentityMissing
		}
		metrics.AuthAttempts.WithLabelValues(metrics.ResultStoreError).Inc()
		return nil, ErrStoreUnavailable
	}

	metrics.AuthAttempts.WithLabelValues(metrics.ResultSuccess).Inc()
	return &user, nil
}
