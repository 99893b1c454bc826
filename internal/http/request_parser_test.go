package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/carlmjohnson/be"

	"ledger/internal/core"
)

func TestParseExpenseInput(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		want        expenseInput
		wantJSON    bool
		wantErr     bool
	}{
		{
			name:        "form",
			body:        "category=+food+&amount=12%2C50&month=january",
			contentType: "application/x-www-form-urlencoded",
			want:        expenseInput{Category: "food", Amount: "12,50", Month: "january"},
		},
		{
			name:        "json with numeric amount",
			body:        `{"category":"rent","amount":500,"month":"May"}`,
			contentType: "application/json",
			want:        expenseInput{Category: "rent", Amount: "500", Month: "May"},
			wantJSON:    true,
		},
		{
			name:        "control characters dropped",
			body:        "category=fo%00od&amount=1&month=June",
			contentType: "application/x-www-form-urlencoded",
			want:        expenseInput{Category: "food", Amount: "1", Month: "June"},
		},
		{
			name:        "empty body",
			contentType: "application/x-www-form-urlencoded",
			want:        expenseInput{},
		},
		{
			name:        "broken json",
			body:        `{"category":`,
			contentType: "application/json",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)
			got, isJSON, err := parseExpenseInput(r)
			if tt.wantErr {
				be.Nonzero(t, err)
				return
			}
			be.NilErr(t, err)
			be.Equal(t, tt.want, got)
			be.Equal(t, tt.wantJSON, isJSON)
		})
	}
}

func TestRequestBodyParserRejectsHugeBody(t *testing.T) {
	body := "category=" + strings.Repeat("a", maxBodyBytes+10)
	r := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	p := NewRequestBodyParser(r)
	be.True(t, errors.Is(p.Parse(), errBodyTooLarge))
}

func TestRequireMethod(t *testing.T) {
	r := httptest.NewRequest(http.MethodHead, "/", nil)
	be.True(t, RequireGET(r) == nil)

	r = httptest.NewRequest(http.MethodDelete, "/", nil)
	resp := RequirePOST(r)
	be.True(t, resp != nil)
	w := httptest.NewRecorder()
	resp.Write(w)
	be.Equal(t, "POST", w.Header().Get("Allow"))
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.ErrEmptyCategory, "Category is required."},
		{core.ErrZeroAmount, "Amount must be greater than zero."},
		{core.ErrNegativeAmount, "Amount must not be negative."},
		{core.ErrInvalidAmount, "Amount must be a number."},
		{core.ErrUnknownMonth, "Pick a month from the list."},
		{core.ErrInvalidInput, "Invalid input."},
	}
	for _, tt := range tests {
		be.Equal(t, tt.want, userMessage(tt.err))
	}
}

func TestBarWidthPercent(t *testing.T) {
	be.Equal(t, 100, barWidthPercent(10, 10))
	be.Equal(t, 50, barWidthPercent(5, 10))
	be.Equal(t, 2, barWidthPercent(0.01, 10))
	be.Equal(t, 0, barWidthPercent(0, 10))
	be.Equal(t, 0, barWidthPercent(3, 0))
}
