package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthErrors(t *testing.T) {
	var notAuth error = &ErrNotAuthenticated{}
	assert.Contains(t, notAuth.Error(), "login first")

	var expired error = &ErrAuthExpired{}
	assert.Contains(t, expired.Error(), "login again")
}

func TestErrNetwork_Unwrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := &ErrNetwork{Err: inner}

	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, inner, stderrors.Unwrap(err))
}

func TestErrAPI_Message(t *testing.T) {
	err := &ErrAPI{Message: "knowledge source not found"}
	assert.Equal(t, "knowledge source not found", err.Error())

	// Fallback text when server gave no message
	empty := &ErrAPI{}
	assert.NotEmpty(t, empty.Error())
}

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "email"}
	assert.Contains(t, err.Error(), "email")
}

func TestErrAsMatching(t *testing.T) {
	wrapped := fmt.Errorf("request: %w", &ErrAuthExpired{})

	var target *ErrAuthExpired
	assert.True(t, stderrors.As(wrapped, &target))
}

func TestDatabaseErrors(t *testing.T) {
	inner := fmt.Errorf("disk full")

	open := &ErrDatabaseOpen{Path: "/tmp/x.db", Err: inner}
	assert.Contains(t, open.Error(), "/tmp/x.db")
	assert.Equal(t, inner, stderrors.Unwrap(open))

	query := &ErrDatabaseQuery{Operation: "set content", Err: inner}
	assert.Contains(t, query.Error(), "set content")
	assert.Equal(t, inner, stderrors.Unwrap(query))
}
