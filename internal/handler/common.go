package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/dandantas/tablescout/internal/model"
	"github.com/go-playground/validator/v10"
)

// JobService is what the handlers need from the pipeline
type JobService interface {
	SubmitResearch(ctx context.Context, topic string, maxDocuments int) (model.Job, error)
	SubmitDocument(ctx context.Context, name string, document io.Reader) (model.Job, error)
	Job(ctx context.Context, id string) (model.Job, error)
	Jobs() []model.Job
	Snapshot(jobID string) (model.Message, bool)
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// parseQueryInt parses an integer query parameter with a default value
func parseQueryInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationErrors maps each invalid JSON field to a readable message, or
// returns nil when s is valid.
func validationErrors(s any) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return map[string]string{"_": err.Error()}
	}

	out := make(map[string]string, len(fieldErrs))
	for _, e := range fieldErrs {
		switch e.Tag() {
		case "required":
			out[e.Field()] = fmt.Sprintf("%s is required", e.Field())
		case "min", "gte":
			out[e.Field()] = fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
		case "max", "lte":
			out[e.Field()] = fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
		default:
			out[e.Field()] = fmt.Sprintf("%s is invalid (%s)", e.Field(), e.Tag())
		}
	}
	return out
}

// writeJobError maps pipeline errors to responses
func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "Job not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
