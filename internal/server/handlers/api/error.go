package api

import "fmt"

// APIError is the JSON body of every failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gamebox api error: code=%s, message=%s", e.Code, e.Message)
}
