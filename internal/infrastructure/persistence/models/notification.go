package models

import (
	"encoding/json"
	"time"

	"github.com/shopsync/backend/internal/domain/notification"
)

// NotificationModel is the persistence model for the Notification domain entity
type NotificationModel struct {
	TenantModel
	Type         notification.Type     `gorm:"type:varchar(32);not null"`
	Title        string                `gorm:"type:varchar(255);not null"`
	Message      string                `gorm:"type:text"`
	Priority     notification.Priority `gorm:"type:varchar(16);not null"`
	EntityID     string                `gorm:"type:varchar(255);not null"`
	Kind         string                `gorm:"type:varchar(64);not null"`
	DedupKey     string                `gorm:"type:varchar(320);not null;index:idx_notification_tenant_dedup,priority:2"`
	IsRead       bool                  `gorm:"not null;default:false"`
	IsArchived   bool                  `gorm:"not null;default:false"`
	MetadataJSON string                `gorm:"type:jsonb;column:metadata"`
	ExpiresAt    *time.Time            `gorm:"index"`
}

// TableName returns the table name for GORM
func (NotificationModel) TableName() string {
	return "notifications"
}

// ToDomain converts the persistence model to a domain Notification
func (m *NotificationModel) ToDomain() *notification.Notification {
	n := &notification.Notification{
		TenantEntity: m.ToTenantEntity(),
		Type:         m.Type,
		Title:        m.Title,
		Message:      m.Message,
		Priority:     m.Priority,
		EntityID:     m.EntityID,
		Kind:         m.Kind,
		DedupKey:     m.DedupKey,
		IsRead:       m.IsRead,
		IsArchived:   m.IsArchived,
		ExpiresAt:    m.ExpiresAt,
	}
	if m.MetadataJSON != "" {
		_ = json.Unmarshal([]byte(m.MetadataJSON), &n.Metadata)
	}
	return n
}

// NotificationModelFromDomain creates a new persistence model from a domain Notification
func NotificationModelFromDomain(n *notification.Notification) *NotificationModel {
	m := &NotificationModel{
		Type:         n.Type,
		Title:        n.Title,
		Message:      n.Message,
		Priority:     n.Priority,
		EntityID:     n.EntityID,
		Kind:         n.Kind,
		DedupKey:     n.DedupKey,
		IsRead:       n.IsRead,
		IsArchived:   n.IsArchived,
		MetadataJSON: encodeJSON(n.Metadata, "{}"),
		ExpiresAt:    utcPtr(n.ExpiresAt),
	}
	m.FromDomainTenantEntity(n.TenantEntity)
	return m
}
