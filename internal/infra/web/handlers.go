package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-sms-relay/internal/domain"
	"telegram-sms-relay/internal/usecase"
)

type loginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) loginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if !s.keyMatches(req.APIKey) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		token, err := s.auth.Mint(w)
		if err != nil {
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func (s *Server) logoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.auth.Clear(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func statsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := statsUC.Totals(r.Context())
		if err != nil {
			http.Error(w, "Failed to get totals", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

type logEntryResponse struct {
	ID          int64  `json:"id"`
	Destination string `json:"destination"`
	Message     string `json:"message"`
	SentAt      string `json:"sent_at"`
}

func userLogHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathUserID(r)
		if err != nil {
			http.Error(w, "Invalid user id", http.StatusBadRequest)
			return
		}
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit < 0 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
		}

		entries, err := adminUC.UserLog(r.Context(), userID, limit)
		if err != nil {
			http.Error(w, "Failed to load log", http.StatusInternalServerError)
			return
		}
		out := make([]logEntryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, logEntryResponse{
				ID:          e.ID,
				Destination: e.Destination,
				Message:     e.Message,
				SentAt:      e.SentAt.Format("2006-01-02"),
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type bonusRequest struct {
	Delta int `json:"delta"`
}

func grantBonusHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := pathUserID(r)
		if err != nil {
			http.Error(w, "Invalid user id", http.StatusBadRequest)
			return
		}
		var req bonusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		err = adminUC.GrantBonus(r.Context(), userID, req.Delta)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "Delta must be non-zero", http.StatusBadRequest)
		default:
			http.Error(w, "Failed to grant bonus", http.StatusInternalServerError)
		}
	}
}

func backupHandler(adminUC usecase.AdminUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := adminUC.Backup(r.Context())
		if err != nil {
			http.Error(w, "Failed to build backup", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition",
			`attachment; filename="sms-relay-backup-`+time.Now().Format("2006-01-02")+`.json"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(payload)
	}
}

func pathUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
