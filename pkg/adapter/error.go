package adapter

import (
	"fmt"
	"strings"
)

// Error wraps provider errors with status metadata. Adapters fill in what the
// provider reports; interpreting it is left to the caller.
type Error struct {
	Provider string
	Status   int
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e == nil {
		return "adapter error"
	}
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(e.Provider)
		sb.WriteString(" API error")
	} else {
		sb.WriteString("adapter error")
	}
	if e.Status != 0 || e.Code != "" {
		sb.WriteString(" (")
		if e.Status != 0 {
			sb.WriteString(fmt.Sprintf("status=%d", e.Status))
		}
		if e.Code != "" {
			if e.Status != 0 {
				sb.WriteString(" ")
			}
			sb.WriteString("code=" + e.Code)
		}
		sb.WriteString(")")
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg != "" {
		sb.WriteString(": ")
		sb.WriteString(msg)
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
