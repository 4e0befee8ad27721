package httpapi

import "net/http"

// handlerError is a typed HTTP error a route handler can return, separating
// an internal log message from the message sent to the client.
type handlerError struct {
	Code          int
	Message       string
	ClientMessage string
}

func (e *handlerError) Error() string { return e.Message }

func newHandlerError(code int, message string) *handlerError {
	return &handlerError{Code: code, Message: message, ClientMessage: message}
}

func newNotFoundError(message string) *handlerError {
	return newHandlerError(http.StatusNotFound, message)
}

func newInternalError(message string) *handlerError {
	return newHandlerError(http.StatusInternalServerError, message)
}

func newBadRequestError(message string) *handlerError {
	return newHandlerError(http.StatusBadRequest, message)
}
