package api

import (
	"net/http"
	"strconv"

	"mistrihub/internal/models"
)

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	notifications, err := s.notifications.ListByUser(r.Context(), s.db, caller, limit)
	if err != nil {
		return err
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
	return nil
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	if err := s.notifications.MarkRead(r.Context(), s.db, caller, r.PathValue("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
