package controllers

import (
	"net/http"

	"github.com/rassdread/homecheff-app-sub014/api/middleware"
	"github.com/rassdread/homecheff-app-sub014/api/responses"
)

type pingResponse struct {
	Scope  string `json:"scope"`
	Status string `json:"status"`
	UserID string `json:"user_id,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Ping answers smoke checks for each auth tier. Behind Auth it echoes the
// caller so tokens can be verified end to end.
func Ping(scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, pingResponse{
			Scope:  scope,
			Status: "ok",
			UserID: middleware.UserIDFromContext(r.Context()),
			Role:   middleware.RoleFromContext(r.Context()),
		})
	}
}
