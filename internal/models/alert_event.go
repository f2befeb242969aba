package models

import (
	"time"
)

// AlertEvent 报警事件（对应 alert_events 表）
type AlertEvent struct {
	EventID     string     `json:"event_id" db:"event_id"`
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	PatientID   string     `json:"patient_id" db:"patient_id"`
	Category    string     `json:"category" db:"category"` // blood_pressure, blood_oxygen, cardiac, manual
	Condition   string     `json:"condition" db:"condition"`
	AlertStatus string     `json:"alert_status" db:"alert_status"` // active, acknowledged
	TriggeredAt time.Time  `json:"triggered_at" db:"triggered_at"`
	HandTime    *time.Time `json:"hand_time,omitempty" db:"hand_time"`
	Handler     *string    `json:"handler,omitempty" db:"handler"`
	Notes       *string    `json:"notes,omitempty" db:"notes"`
	Metadata    string     `json:"metadata" db:"metadata"` // JSONB
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}
