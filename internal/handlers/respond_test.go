package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"p2p-market/internal/services"
)

func TestRespondServiceErrorStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", gorm.ErrRecordNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load trade: %w", gorm.ErrRecordNotFound), http.StatusNotFound},
		{"forbidden", &services.PreconditionError{Message: "not a participant", Forbidden: true}, http.StatusForbidden},
		{"precondition", &services.PreconditionError{Message: "trade is not processing"}, http.StatusBadRequest},
		{"validation", &services.ValidationError{Field: "amount", Message: "must be positive"}, http.StatusBadRequest},
		{"conflict", &services.ConflictError{Message: "trade is busy"}, http.StatusConflict},
		{"unknown", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			respondServiceError(c, tc.err)

			if w.Code != tc.want {
				t.Errorf("expected status %d, got %d", tc.want, w.Code)
			}
		})
	}
}
