package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validationProblem extends the problem document with per-field messages.
type validationProblem struct {
	ProblemDetail
	Fields map[string]string `json:"fields,omitempty"`
}

// ValidationProblem sends a 400 problem response. Field-level messages are
// included when err is a validator.ValidationErrors.
func ValidationProblem(w http.ResponseWriter, err error) {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	JSON(w, http.StatusBadRequest, validationProblem{
		ProblemDetail: ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
		},
		Fields: fields,
	})
}

// BadRequest sends a 400 problem response.
func BadRequest(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusBadRequest, "Bad Request", detail)
}

// NotFound sends a 404 problem response.
func NotFound(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusNotFound, "Not Found", detail)
}

// Conflict sends a 409 problem response.
func Conflict(w http.ResponseWriter, detail string) {
	Problem(w, http.StatusConflict, "Conflict", detail)
}

// Internal sends a 500 problem response without leaking the error.
func Internal(w http.ResponseWriter) {
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
