package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotPDF       = errors.New("only PDF documents can be uploaded")
	ErrFileTooLarge = errors.New("document exceeds the 10 MB limit")
	ErrEmptyFile    = errors.New("document is empty")
)

// APIError is a non-2xx answer from the REST API.
type APIError struct {
	Status  int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (status=%d)", e.Message, e.Status)
	}
	return fmt.Sprintf("http status %d", e.Status)
}

// UserMessage returns the server supplied message, if any.
func (e *APIError) UserMessage() string { return e.Message }

func decodeAPIError(status int, body []byte) error {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	e := &APIError{Status: status, Body: strings.TrimSpace(string(body))}
	if err := json.Unmarshal(body, &parsed); err == nil {
		e.Message = strings.TrimSpace(parsed.Message)
		if e.Message == "" && parsed.Error != "" && parsed.Error != http.StatusText(status) {
			e.Message = strings.TrimSpace(parsed.Error)
		}
	}
	return e
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func IsUnauthorized(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }

func IsConflict(err error) bool { return StatusOf(err) == http.StatusConflict }
