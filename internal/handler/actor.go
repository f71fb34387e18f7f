package handler

import (
	"net/http"

	"go-charity-backoffice/internal/middleware"
	"go-charity-backoffice/internal/model"
)

// actorFromRequest identifies who is acting, for deletedBy and activity entries.
func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = claims.UserID
	actor.Username = claims.Username
	actor.Role = claims.Role
	return actor
}
