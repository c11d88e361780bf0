package repository

import (
	"context"
	"time"
)

// SandboxStep orders the admin test-pipeline steps. Each handler requires
// the session to be at the preceding step before advancing.
type SandboxStep string

const (
	SandboxStepUserCreated    SandboxStep = "user_created"
	SandboxStepPaymentCreated SandboxStep = "payment_created"
	SandboxStepLinkCreated    SandboxStep = "link_created"
	SandboxStepSimulated      SandboxStep = "simulated"
)

// SandboxSession is one admin's in-flight provider test pipeline. Explicit
// session state keyed by admin id, passed through calls, never ambient.
type SandboxSession struct {
	AdminID   int64       `json:"admin_id"`
	Step      SandboxStep `json:"step"`
	PanelUUID string      `json:"panel_uuid"`
	Username  string      `json:"username"`
	PaymentID int64       `json:"payment_id"`
	OrderID   string      `json:"order_id"`
	PayURL    string      `json:"pay_url"`
	Amount    int64       `json:"amount"`
	Months    int         `json:"months"`
	Outcome   string      `json:"outcome,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SandboxSessionRepository stores at most one session per admin.
type SandboxSessionRepository interface {
	Put(ctx context.Context, s *SandboxSession) error
	Get(ctx context.Context, adminID int64) (*SandboxSession, error) // domain.ErrNotFound when absent
	Clear(ctx context.Context, adminID int64) error
}
