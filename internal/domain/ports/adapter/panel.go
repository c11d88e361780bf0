package adapter

import (
	"context"
	"time"
)

// PanelUser is the panel's view of a managed subscription account.
type PanelUser struct {
	UUID        string
	Username    string
	Status      string
	ExpireAt    time.Time
	SubURL      string // config/subscription link handed to the user
	TrafficUsed int64
}

// PanelClient is the narrow contract against the external subscription panel.
// The panel is a black box: each call is synchronous and returns success or a
// typed failure. It does not deduplicate extensions; callers guarantee
// at-most-once invocation per payment.
type PanelClient interface {
	CreateUser(ctx context.Context, username string, expireDays int, trafficLimit int64) (*PanelUser, error)
	GetUserByUUID(ctx context.Context, uuid string) (*PanelUser, error)
	DeleteUser(ctx context.Context, uuid string) error
	// ExtendSubscription activates or extends the user's access by months.
	// Returns the new expiry and subscription link.
	ExtendSubscription(ctx context.Context, userID int64, months int, provider string) (*PanelUser, error)
}

// Notifier dispatches user-facing messages about payment outcomes.
type Notifier interface {
	NotifyPaymentSucceeded(ctx context.Context, userID int64, months int, provider, subURL string, expireAt time.Time) error
}

// ReferralProgram applies referral/promotional bonuses tied to a purchasing
// user. ApplyForPayment must be idempotent per payment id.
type ReferralProgram interface {
	// ApplyForPayment returns the bonus days granted to the purchaser, 0 when
	// no program is active or the bonus was already applied for this payment.
	ApplyForPayment(ctx context.Context, userID, paymentID int64, months int) (int, error)
}

// Locker serializes work on a single key across concurrent deliveries.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
