package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/shopdesk/internal/domain"
)

const msgInternal = "Internal server error"

// statusFor сопоставляет вид ошибки сервиса с HTTP-статусом.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorResponse строит тело ответа. Причина внутренних ошибок наружу не попадает.
func errorResponse(err error) (int, []byte) {
	kind := domain.KindOf(err)
	code := statusFor(kind)

	message := msgInternal
	var typed *domain.Error
	if errors.As(err, &typed) && typed.Message != "" {
		message = typed.Message
	}

	return code, encodeError(code, message)
}

func encodeError(code int, message string) []byte {
	body, _ := json.Marshal(errorJSON{
		StatusCode: code,
		Message:    message,
		Error:      http.StatusText(code),
	})
	return body
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeRaw(w, code, encodeError(code, message))
}

func writeRaw(w http.ResponseWriter, code int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeRaw(w, code, body)
}
