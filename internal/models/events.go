package models

import "time"

// Ключи маршрутизации событий жизненного цикла доступа.
const (
	EventEntitlementGranted = "entitlement.granted"
	EventAccessRevoked      = "access.revoked"
)

// Причины отзыва доступа.
const (
	RevokeReasonExpired   = "expired"
	RevokeReasonCancelled = "cancelled"
)

// EntitlementGranted публикуется, когда оплаченный заказ продлил доступ пользователя.
type EntitlementGranted struct {
	UserID   string    `json:"user_id"`
	OrderID  string    `json:"order_id"`
	PlanCode string    `json:"plan"`
	ExpireAt time.Time `json:"expire_at"`
}

// AccessRevoked публикуется после отзыва ssh-доступа и удаления пользователя.
type AccessRevoked struct {
	UserID    string    `json:"user_id"`
	SSHName   string    `json:"ssh_name"`
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}
