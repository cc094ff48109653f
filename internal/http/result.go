package httpapi

import (
	"time"

	"wisefido-patient-status/internal/domain"
)

// SuccessResponse 成功响应信封
type SuccessResponse[T any] struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       T      `json:"data"`
	Timestamp  string `json:"timestamp"`
}

// ErrorResponse 失败响应信封
// - error: 状态码短语（"Bad Request"、"Forbidden" ...）
// - path: 请求的原始 URL（含 query）
// - details: 仅校验失败时出现
type ErrorResponse struct {
	Success    bool     `json:"success"`
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Error      string   `json:"error"`
	Timestamp  string   `json:"timestamp"`
	Path       string   `json:"path"`
	Details    []string `json:"details,omitempty"`
}

func Ok[T any](status int, message string, data T) SuccessResponse[T] {
	return SuccessResponse[T]{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
		Timestamp:  domain.FormatTimestamp(time.Now()),
	}
}

func Fail(status int, label, message, path string, details []string) ErrorResponse {
	return ErrorResponse{
		Success:    false,
		StatusCode: status,
		Message:    message,
		Error:      label,
		Timestamp:  domain.FormatTimestamp(time.Now()),
		Path:       path,
		Details:    details,
	}
}
