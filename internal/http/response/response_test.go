package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	UserID   string `validate:"required,max=8"`
	Language string `validate:"omitempty,oneof=en ru"`
	Code     string `validate:"omitempty,alphanum"`
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name string
		in   sample
		want string
	}{
		{
			name: "required",
			in:   sample{},
			want: "field UserID is a required field",
		},
		{
			name: "max and oneof",
			in:   sample{UserID: "123456789", Language: "de"},
			want: "field UserID must be at most 8 characters long, field Language must be one of: en ru",
		},
		{
			name: "alphanum",
			in:   sample{UserID: "1", Code: "a-b"},
			want: "field Code can contain only numbers and letters",
		},
	}

	v := validator.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			require.Error(t, err)
			resp := ValidationError(err.(validator.ValidationErrors))
			assert.Equal(t, StatusError, resp.Status)
			assert.Equal(t, tt.want, resp.Error)
		})
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	WriteError(w, r, http.StatusConflict, "busy")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"status":"Error","error":"busy"}`, w.Body.String())
}

func TestStatusOKWithData(t *testing.T) {
	resp := StatusOKWithData(map[string]int{"n": 1})
	assert.Equal(t, StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
	assert.Equal(t, map[string]int{"n": 1}, resp.Data)
}
