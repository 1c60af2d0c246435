package handlers

import (
	"net/http"
	"strings"

	"github.com/isdelr/acquisitions-api/internal/access"
	"github.com/isdelr/acquisitions-api/internal/auth"
	"github.com/isdelr/acquisitions-api/internal/httpx"
	"github.com/isdelr/acquisitions-api/internal/models"
	"github.com/isdelr/acquisitions-api/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles HTTP requests for user management.
type UserHandler struct {
	service services.UserServiceProvider
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider) *UserHandler {
	return &UserHandler{service: service}
}

type updateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=2,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72,pwbytes"`
	Role     *string `json:"role" validate:"omitempty,oneof=user admin"`
}

func (req updateUserRequest) toUpdate() services.UserUpdate {
	upd := services.UserUpdate{Name: req.Name, Email: req.Email, Password: req.Password}
	if req.Role != nil {
		role := models.Role(*req.Role)
		upd.Role = &role
	}
	return upd
}

// List returns every user. Admin only; enforced by the router.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "list users")
		return
	}
	log.Info().Int("count", len(users)).Msg("Users retrieved")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Users retrieved successfully",
		"users":   users,
		"count":   len(users),
	})
}

// Get returns one user. Any authenticated caller may read any id.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}
	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "get user")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User retrieved successfully",
		"user":    user,
	})
}

// Update changes a user. Callers may edit themselves; admins may edit
// anyone and are the only ones allowed to set a role.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Access is settled before the body is validated, so a forbidden role
	// change is a 403 whatever value it carries.
	caller := auth.IdentityFrom(r.Context())
	if err := access.CheckOwnership(caller, id); err != nil {
		writeAccessError(w, err, "Forbidden: cannot update other users")
		return
	}
	if err := access.CheckUpdate(caller, id, access.Change{SetsRole: req.Role != nil}); err != nil {
		writeAccessError(w, err, "Forbidden: only admin can change role")
		return
	}

	if req.Name != nil {
		*req.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		*req.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if !validateStruct(w, req) {
		return
	}
	upd := req.toUpdate()
	if upd.Empty() {
		writeInvalid(w, map[string]string{"body": "At least one field must be provided to update"})
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, upd)
	if err != nil {
		writeServiceError(w, r, err, "update user")
		return
	}
	log.Info().Int64("user_id", id).Int64("by", caller.UserID).Msg("User updated")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    user,
	})
}

// Delete removes one user; self or admin.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	caller := auth.IdentityFrom(r.Context())
	if err := access.CheckOwnership(caller, id); err != nil {
		writeAccessError(w, err, "Forbidden: cannot delete other users")
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "delete user")
		return
	}
	log.Info().Int64("user_id", id).Int64("by", caller.UserID).Msg("User deleted")
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "User deleted successfully",
	})
}

// DeleteAll wipes every user. Anyone but an admin, guests included, gets 403.
func (h *UserHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	caller := auth.IdentityFrom(r.Context())
	if err := access.CheckBulkDelete(caller); err != nil {
		httpx.WriteError(w, http.StatusForbidden, "Forbidden: only admin can delete all users")
		return
	}

	n, err := h.service.DeleteAllUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "delete all users")
		return
	}
	log.Warn().Int64("deleted", n).Int64("by", caller.UserID).Msg("All users deleted")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "All users deleted successfully",
		"deleted": n,
	})
}
