package domain

import "errors"

var (
	ErrAgentNotFound       = errors.New("agent not found")
	ErrMessageNotFound     = errors.New("message not found")
	ErrUnsupportedAction   = errors.New("unsupported required action")
	ErrApprovalMismatch    = errors.New("approval decisions do not match tool calls")
	ErrPollExhausted       = errors.New("run poll budget exhausted")
	ErrPrematureInspection = errors.New("run steps inspected before completion")
	ErrRunFailed           = errors.New("run ended in terminal failure")
	ErrTokenNotFound       = errors.New("access token not found")
)
