package models

// OrderStatus статус заказа в терминах платежного шлюза.
type OrderStatus string

// Статусы заказа PayPal Orders v2.
const (
	StatusCreated             OrderStatus = "CREATED"
	StatusSaved               OrderStatus = "SAVED"
	StatusPayerActionRequired OrderStatus = "PAYER_ACTION_REQUIRED"
	StatusApproved            OrderStatus = "APPROVED"
	StatusCompleted           OrderStatus = "COMPLETED"
	StatusVoided              OrderStatus = "VOIDED"
)

// Rank возвращает порядок статуса в жизненном цикле заказа. Неизвестные статусы имеют ранг 0.
func (s OrderStatus) Rank() int {
	switch s {
	case StatusCreated, StatusSaved, StatusPayerActionRequired:
		return 1
	case StatusApproved:
		return 2
	case StatusCompleted, StatusVoided:
		return 3
	default:
		return 0
	}
}

// IsKnown сообщает, входит ли статус в известный жизненный цикл.
func (s OrderStatus) IsKnown() bool {
	return s.Rank() > 0
}

// IsTerminal сообщает, что статус больше не меняется.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusVoided
}

// MergeStatus решает, какой статус сохранить, когда шлюз сообщил reported при сохраненном stored.
// Терминальный статус не заменяется, понижение ранга отклоняется, неизвестный статус не
// перезаписывает известный. Второй результат false означает, что reported отклонен.
func MergeStatus(stored, reported OrderStatus) (OrderStatus, bool) {
	switch {
	case stored == reported:
		return stored, true
	case stored.IsTerminal():
		return stored, false
	case !reported.IsKnown():
		return stored, false
	case !stored.IsKnown():
		return reported, true
	case reported.Rank() < stored.Rank():
		return stored, false
	default:
		return reported, true
	}
}
