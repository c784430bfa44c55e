package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wildatlas/backend/internal/models"
	"github.com/wildatlas/backend/pkg/logger"
	"gorm.io/gorm"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
}

// AuditService appends logins, registrations and admin mutations to the
// audit trail. Writes happen on a background goroutine; a full queue drops
// the entry rather than blocking the request.
type AuditService struct {
	DB        *gorm.DB
	queue     chan models.AuditLog
	done      chan struct{}
	closeOnce sync.Once
}

func NewAuditService(db *gorm.DB) *AuditService {
	s := &AuditService{
		DB:    db,
		queue: make(chan models.AuditLog, 1000),
		done:  make(chan struct{}),
	}
	go s.processQueue()
	return s
}

// Close stops accepting entries and blocks until every queued row has been
// written. Call only after the server has stopped handling requests.
func (s *AuditService) Close() {
	s.closeOnce.Do(func() {
		close(s.queue)
	})
	<-s.done
}

func (s *AuditService) LogAsync(entry AuditEntry) {
	row := models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		CreatedAt:    time.Now().UTC(),
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}
