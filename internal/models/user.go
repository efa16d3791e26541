// Package models содержит доменную модель хранилища: пользователей с ssh-доступом,
// каталог тарифов, промокоды и платежные заказы, а также события жизненного цикла доступа.
//
// JSON-представление совместимо с документом DB.json, который ведет чат-бот:
// имена полей сохранены, неизвестные поля переживают перезапись.
package models

import (
	"encoding/json"
	"time"
)

// Языки интерфейса, которые поддерживает чат.
const (
	LanguageEN = "en"
	LanguageRU = "ru"
)

// User представляет пользователя чата и его ssh-доступ.
type User struct {
	UserID      string     // Идентификатор пользователя в чате
	SSHName     string     // Имя учетной записи на хосте, пустое пока доступ не выдан
	SSHPassword string     // Пароль учетной записи
	DisplayName string     // Отображаемое имя в чате
	ExpireAt    *time.Time // Окончание оплаченного доступа, nil если доступа нет
	Language    string     // en или ru

	rawExpire string
	extra     map[string]json.RawMessage
}

type userWire struct {
	UserID      string `json:"user_id"`
	SSHName     string `json:"sshName"`
	SSHPassword string `json:"sshPassword"`
	DisplayName string `json:"TGname"`
	ExpireAt    string `json:"expire_datetime"`
	Language    string `json:"language"`
}

var userKeys = []string{"user_id", "sshName", "sshPassword", "TGname", "expire_datetime", "language"}

// HasAccount сообщает, выдана ли пользователю учетная запись на хосте.
func (u User) HasAccount() bool {
	return u.SSHName != ""
}

// IsActive сообщает, оплачен ли доступ на момент now.
func (u User) IsActive(now time.Time) bool {
	return u.ExpireAt != nil && u.ExpireAt.After(now)
}

// IsExpired сообщает, что срок доступа задан и уже наступил.
func (u User) IsExpired(now time.Time) bool {
	return u.ExpireAt != nil && !u.ExpireAt.After(now)
}

// SetExpireAt выставляет срок доступа, отбрасывая точность меньше микросекунды.
func (u *User) SetExpireAt(t time.Time) {
	t = t.Truncate(time.Microsecond)
	u.ExpireAt = &t
	u.rawExpire = ""
}

// MarshalJSON реализует json.Marshaler.
func (u User) MarshalJSON() ([]byte, error) {
	w := userWire{
		UserID:      u.UserID,
		SSHName:     u.SSHName,
		SSHPassword: u.SSHPassword,
		DisplayName: u.DisplayName,
		ExpireAt:    stamp{t: u.ExpireAt, raw: u.rawExpire}.encode(),
		Language:    u.Language,
	}
	return mergeExtra(w, u.extra)
}

// UnmarshalJSON реализует json.Unmarshaler.
func (u *User) UnmarshalJSON(data []byte) error {
	var w userWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, userKeys...)
	if err != nil {
		return err
	}
	exp := decodeStamp(w.ExpireAt)
	*u = User{
		UserID:      w.UserID,
		SSHName:     w.SSHName,
		SSHPassword: w.SSHPassword,
		DisplayName: w.DisplayName,
		ExpireAt:    exp.t,
		Language:    w.Language,
		rawExpire:   exp.raw,
		extra:       extra,
	}
	return nil
}
