package models

import (
	"encoding/json"
	"sort"
)

// Document весь персистентный документ: пользователи, каталог и заказы.
// Version растет на единицу при каждой успешной записи и служит для
// оптимистичной блокировки.
type Document struct {
	Version         int64
	Users           []User
	PurchaseOptions map[string]PurchaseOption
	Coupons         map[string]Coupon
	Payments        map[string]PaymentOrder

	extra map[string]json.RawMessage
}

type documentWire struct {
	Version         int64                     `json:"version"`
	Users           []User                    `json:"users"`
	PurchaseOptions map[string]PurchaseOption `json:"purchase_options"`
	Coupons         map[string]Coupon         `json:"coupons"`
	Payments        map[string]PaymentOrder   `json:"payments"`
}

var documentKeys = []string{"version", "users", "purchase_options", "coupons", "payments"}

// DefaultDocument возвращает документ, которым инициализируется пустое или нечитаемое хранилище.
func DefaultDocument() *Document {
	return &Document{
		Users:           []User{},
		PurchaseOptions: DefaultPurchaseOptions(),
		Coupons:         DefaultCoupons(),
		Payments:        map[string]PaymentOrder{},
	}
}

// User возвращает копию пользователя по идентификатору.
func (d *Document) User(userID string) (User, bool) {
	if i := d.userIndex(userID); i >= 0 {
		return d.Users[i], true
	}
	return User{}, false
}

// UpsertUser заменяет запись с тем же UserID целиком или добавляет новую в конец.
func (d *Document) UpsertUser(u User) {
	if i := d.userIndex(u.UserID); i >= 0 {
		d.Users[i] = u
		return
	}
	d.Users = append(d.Users, u)
}

// RemoveUsers удаляет пользователей, для которых remove вернул true, и возвращает удаленных.
func (d *Document) RemoveUsers(remove func(User) bool) []User {
	var removed []User
	kept := d.Users[:0]
	for _, u := range d.Users {
		if remove(u) {
			removed = append(removed, u)
			continue
		}
		kept = append(kept, u)
	}
	d.Users = kept
	return removed
}

// Order возвращает заказ по идентификатору.
func (d *Document) Order(orderID string) (PaymentOrder, bool) {
	o, ok := d.Payments[orderID]
	return o, ok
}

// PutOrder сохраняет заказ под его OrderID.
func (d *Document) PutOrder(o PaymentOrder) {
	if d.Payments == nil {
		d.Payments = map[string]PaymentOrder{}
	}
	d.Payments[o.OrderID] = o
}

// PlanCodes возвращает коды тарифов каталога в лексикографическом порядке.
func (d *Document) PlanCodes() []string {
	codes := make([]string, 0, len(d.PurchaseOptions))
	for code := range d.PurchaseOptions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (d *Document) userIndex(userID string) int {
	for i := range d.Users {
		if d.Users[i].UserID == userID {
			return i
		}
	}
	return -1
}

// MarshalJSON реализует json.Marshaler.
func (d Document) MarshalJSON() ([]byte, error) {
	w := documentWire{
		Version:         d.Version,
		Users:           d.Users,
		PurchaseOptions: d.PurchaseOptions,
		Coupons:         d.Coupons,
		Payments:        d.Payments,
	}
	if w.Users == nil {
		w.Users = []User{}
	}
	if w.PurchaseOptions == nil {
		w.PurchaseOptions = map[string]PurchaseOption{}
	}
	if w.Coupons == nil {
		w.Coupons = map[string]Coupon{}
	}
	if w.Payments == nil {
		w.Payments = map[string]PaymentOrder{}
	}
	return mergeExtra(w, d.extra)
}

// UnmarshalJSON реализует json.Unmarshaler. Ключи словарей переносятся в поля
// PlanCode, Code и OrderID.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w documentWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	extra, err := splitExtra(data, documentKeys...)
	if err != nil {
		return err
	}
	*d = Document{
		Version:         w.Version,
		Users:           w.Users,
		PurchaseOptions: make(map[string]PurchaseOption, len(w.PurchaseOptions)),
		Coupons:         make(map[string]Coupon, len(w.Coupons)),
		Payments:        make(map[string]PaymentOrder, len(w.Payments)),
		extra:           extra,
	}
	if d.Users == nil {
		d.Users = []User{}
	}
	for code, p := range w.PurchaseOptions {
		p.PlanCode = code
		d.PurchaseOptions[code] = p
	}
	for code, c := range w.Coupons {
		c.Code = code
		d.Coupons[code] = c
	}
	for id, o := range w.Payments {
		o.OrderID = id
		d.Payments[id] = o
	}
	return nil
}
