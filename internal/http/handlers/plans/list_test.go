package plans

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/ssh-subscription/internal/models"
)

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Plans() []models.PurchaseOption {
	args := m.Called()
	return args.Get(0).([]models.PurchaseOption)
}

func (m *MockCatalog) Coupons() []models.Coupon {
	args := m.Called()
	return args.Get(0).([]models.Coupon)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestPlansHandler_ServeHTTP(t *testing.T) {
	c := new(MockCatalog)
	c.On("Plans").Return([]models.PurchaseOption{
		{PlanCode: "1m", PriceMinor: 200, Currency: "EUR", Description: "One month"},
		{PlanCode: "1y", PriceMinor: 2000, Currency: "EUR", AlternatePrice: "0.1 LTC"},
		{PlanCode: "lifetime", PriceMinor: 9900, Currency: "EUR"},
	}).Once()
	c.On("Coupons").Return([]models.Coupon{
		{Code: "WELCOME", RemainingQuantity: 3, GrantedDuration: "1w"},
	}).Once()

	w := httptest.NewRecorder()
	New(newNoopLogger(), c).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"status": "OK",
		"data": {
			"plans": [
				{"code":"1m","price_minor":200,"price":"2.00","currency":"EUR","description":"One month","duration_days":30},
				{"code":"1y","price_minor":2000,"price":"20.00","currency":"EUR","alternate_price":"0.1 LTC","duration_days":365}
			],
			"coupons": [{"code":"WELCOME","remaining":3,"duration":"1w"}]
		}
	}`, w.Body.String())
	c.AssertExpectations(t)
}

func TestPlansHandler_EmptyCatalog(t *testing.T) {
	c := new(MockCatalog)
	c.On("Plans").Return([]models.PurchaseOption{}).Once()
	c.On("Coupons").Return([]models.Coupon{}).Once()

	w := httptest.NewRecorder()
	New(newNoopLogger(), c).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/plans", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK","data":{"plans":[],"coupons":[]}}`, w.Body.String())
}
