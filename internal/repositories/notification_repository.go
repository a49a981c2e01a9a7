package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/safecircle/backend/internal/models"
	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository defines the interface for notification ledger operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	InsertNotifications(ctx context.Context, batch []models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	GetByReceiverID(ctx context.Context, receiverID string, page, limit int) ([]models.Notification, int64, error)
	GetUnreadCount(ctx context.Context, receiverID string) (int64, error)
	MarkAsRead(ctx context.Context, id uint) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// InsertNotifications writes the whole batch in one statement; either every row
// is stored or none is.
func (r *postgresNotificationRepository) InsertNotifications(ctx context.Context, batch []models.Notification) error {
	if len(batch) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&batch).Error
	})
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

// GetByReceiverID returns a page of the receiver's notifications, most recent first
func (r *postgresNotificationRepository) GetByReceiverID(ctx context.Context, receiverID string, page, limit int) ([]models.Notification, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("receiver_id = ?", receiverID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	notifications := []models.Notification{}
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).Where("receiver_id = ?", receiverID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, receiverID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
