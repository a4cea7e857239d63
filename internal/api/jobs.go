package api

import (
	"encoding/json"
	"net/http"
	"time"

	apperrors "mistrihub/internal/common/errors"
	"mistrihub/internal/lifecycle"
	"mistrihub/internal/models"
)

type createJobRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Budget      models.Budget `json:"budget"`
	Location    string        `json:"location"`
	Photos      []string      `json:"photos"`
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	raw, err := decodeBody(r)
	if err != nil {
		return err
	}
	if err := validateSchema(raw, createJobSchema); err != nil {
		return err
	}

	var req createJobRequest
	if err := remarshal(raw, &req); err != nil {
		return err
	}

	job, err := s.engine.CreateJob(r.Context(), caller, lifecycle.CreateJobInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Budget:      req.Budget,
		Location:    req.Location,
		Photos:      req.Photos,
	})
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusCreated, job)
	return nil
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) error {
	job, err := s.engine.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, job)
	return nil
}

func (s *Server) applyToJob(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	app, err := s.engine.Apply(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, app)
	return nil
}

func (s *Server) listApplications(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	apps, err := s.engine.ListApplications(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		return err
	}
	if apps == nil {
		apps = []models.Application{}
	}
	writeJSON(w, http.StatusOK, apps)
	return nil
}

func (s *Server) acceptApplication(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	result, err := s.engine.AcceptApplication(r.Context(), r.PathValue("id"), r.PathValue("appId"), caller)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, result)
	return nil
}

type scheduleJobRequest struct {
	ScheduledDate time.Time `json:"scheduledDate"`
}

func (s *Server) scheduleJob(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	raw, err := decodeBody(r)
	if err != nil {
		return err
	}
	if err := validateSchema(raw, scheduleJobSchema); err != nil {
		return err
	}

	var req scheduleJobRequest
	if err := remarshal(raw, &req); err != nil {
		return err
	}

	job, err := s.engine.Schedule(r.Context(), r.PathValue("id"), caller, req.ScheduledDate)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, job)
	return nil
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	job, err := s.engine.Start(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, job)
	return nil
}

func (s *Server) completeJob(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	job, err := s.engine.Complete(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, job)
	return nil
}

func (s *Server) confirmJob(w http.ResponseWriter, r *http.Request) error {
	caller := callerID(r)
	if caller == "" {
		return unauthenticated(w)
	}

	job, err := s.engine.Confirm(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, job)
	return nil
}

// decodeBody reads the request body into a generic map for schema
// validation.
func decodeBody(r *http.Request) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, apperrors.Validation("request body must be a JSON object")
	}
	return raw, nil
}

// remarshal converts the validated generic map into the typed request.
func remarshal(raw map[string]interface{}, dst interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return apperrors.Internal("remarshal request", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.Validation("request body has invalid field types")
	}
	return nil
}
