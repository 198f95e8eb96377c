// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These codes give clients a stable, machine-readable error taxonomy that
// supplements human-readable messages. Generic codes mirror HTTP status
// semantics; domain codes name a business outcome the status alone cannot
// convey (which duplicate was hit, whether the captcha failed).
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "duplicate_link",
//	  "message": "this link is already listed"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodePayloadTooLarge  = "payload_too_large"

	// Submission:
	ErrCodeValidationFailed   = "validation_failed"
	ErrCodeVerificationFailed = "verification_failed"
	ErrCodeDuplicateLink      = "duplicate_link"
	ErrCodeDuplicateName      = "duplicate_name"
	ErrCodeCreateFailed       = "create_failed"

	// Reads, reports, admin:
	ErrCodeListFailed     = "list_failed"
	ErrCodeAlertsDisabled = "alerts_disabled"
	ErrCodeCaptchaFailed  = "captcha_unavailable"
	ErrCodeAdminDisabled  = "admin_disabled"
)
