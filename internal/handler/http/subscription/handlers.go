package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"news-digest/internal/domain/entity"
	"news-digest/internal/handler/http/respond"
)

// Service is the subscription use case as seen by the handlers.
type Service interface {
	Subscribe(ctx context.Context, email, name string, prefs entity.Preferences) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	UpdatePreferences(ctx context.Context, userID string, prefs entity.Preferences) (*entity.User, error)
	Unsubscribe(ctx context.Context, email, token string) error
}

var errMalformedBody = &entity.ValidationError{Field: "body", Message: "request body must be valid JSON"}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &entity.ValidationError{Field: "body", Message: "request body is too large"}
		}
		return errMalformedBody
	}
	return nil
}

// SubscribeHandler handles POST /subscriptions.
type SubscribeHandler struct{ Svc Service }

type subscribeRequest struct {
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Preferences *PreferencesDTO `json:"preferences"`
}

func (h SubscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if req.Preferences == nil {
		respond.Error(w, r, &entity.ValidationError{Field: "preferences", Message: "preferences are required"})
		return
	}

	user, err := h.Svc.Subscribe(r.Context(), req.Email, req.Name, req.Preferences.toEntity())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, map[string]UserDTO{"user": userDTO(user)})
}

// GetPreferencesHandler handles GET /preferences?email=.
type GetPreferencesHandler struct{ Svc Service }

type preferencesResponse struct {
	UserID      string         `json:"user_id"`
	Email       string         `json:"email"`
	Preferences PreferencesDTO `json:"preferences"`
}

func (h GetPreferencesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		respond.Error(w, r, &entity.ValidationError{Field: "email", Message: "email is required"})
		return
	}

	user, err := h.Svc.GetByEmail(r.Context(), email)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, preferencesResponse{
		UserID:      user.ID,
		Email:       user.Email,
		Preferences: preferencesDTO(user.Preferences),
	})
}

// UpdatePreferencesHandler handles PUT /preferences.
type UpdatePreferencesHandler struct{ Svc Service }

type updatePreferencesRequest struct {
	UserID      string          `json:"user_id"`
	Preferences *PreferencesDTO `json:"preferences"`
}

func (h UpdatePreferencesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req updatePreferencesRequest
	if err := decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		respond.Error(w, r, &entity.ValidationError{Field: "user_id", Message: "user_id is required"})
		return
	}
	if req.Preferences == nil {
		respond.Error(w, r, &entity.ValidationError{Field: "preferences", Message: "preferences are required"})
		return
	}

	user, err := h.Svc.UpdatePreferences(r.Context(), req.UserID, req.Preferences.toEntity())
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]UserDTO{"user": userDTO(user)})
}

// UnsubscribeHandler handles POST /unsubscribe. Email and token come from
// the JSON body or, for links, from the query string.
type UnsubscribeHandler struct{ Svc Service }

type unsubscribeRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

func (h UnsubscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := unsubscribeRequest{
		Email: r.URL.Query().Get("email"),
		Token: r.URL.Query().Get("token"),
	}
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			respond.Error(w, r, err)
			return
		}
	}

	if err := h.Svc.Unsubscribe(r.Context(), req.Email, req.Token); err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}
