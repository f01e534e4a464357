package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceStatus is the state of a repair/maintenance ticket.
type ServiceStatus string

const (
	ServicePending    ServiceStatus = "PENDING"
	ServiceReviewing  ServiceStatus = "REVIEWING"
	ServiceQuoted     ServiceStatus = "QUOTED"
	ServiceApproved   ServiceStatus = "APPROVED"
	ServiceInProgress ServiceStatus = "IN_PROGRESS"
	ServiceCompleted  ServiceStatus = "COMPLETED"
	ServiceCancelled  ServiceStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s ServiceStatus) Terminal() bool {
	return s == ServiceCompleted || s == ServiceCancelled
}

type ServiceType string

const (
	ServiceRepair       ServiceType = "REPAIR"
	ServiceMaintenance  ServiceType = "MAINTENANCE"
	ServiceInstallation ServiceType = "INSTALLATION"
	ServiceInspection   ServiceType = "INSPECTION"
)

// Priority is informational only; it never gates a transition.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityNormal Priority = "NORMAL"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// ServiceRequest is a customer ticket for work on a generator.
type ServiceRequest struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TicketNo      string              `gorm:"size:32;uniqueIndex;not null" json:"ticket_no"`
	UserID        string              `gorm:"size:64;not null;index" json:"user_id"`
	Email         string              `gorm:"size:160" json:"email,omitempty"`
	ServiceType   ServiceType         `gorm:"size:20;not null" json:"service_type"`
	Brand         string              `gorm:"size:80" json:"brand"`
	ModelName     string              `gorm:"column:model;size:80" json:"model"`
	Description   string              `gorm:"type:text;not null" json:"description"`
	PreferredDate *time.Time          `json:"preferred_date,omitempty"`
	Address       string              `gorm:"size:255" json:"address"`
	City          string              `gorm:"size:80" json:"city"`
	Phone         string              `gorm:"size:20" json:"phone"`
	Priority      Priority            `gorm:"size:10;not null" json:"priority"`
	Status        ServiceStatus       `gorm:"size:20;not null;index" json:"status"`
	QuotedAmount  decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"quoted_amount"`
	StaffNotes    string              `gorm:"type:text" json:"staff_notes,omitempty"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
	CancelledAt   *time.Time          `json:"cancelled_at,omitempty"`
}

func (ServiceRequest) TableName() string { return "service_requests" }
