package errors

import "net/http"

// HTTPStatus maps domain codes to HTTP status codes for the control surface.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound, CodeTimerNotFound, CodeMalformedRecord:
		return http.StatusNotFound
	case CodeInvalidTransition:
		return http.StatusConflict
	case CodeTimerInactive, CodeTimerDurationInvalid:
		return http.StatusUnprocessableEntity
	case CodeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
