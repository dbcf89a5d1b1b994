package types

import (
	"context"
	"time"
)

// Transaction represents a database transaction
type Transaction interface {
	Execute(ctx context.Context, fn func(ctx context.Context) error) error
	Savepoint(ctx context.Context, name string) error
	RollbackToSavepoint(ctx context.Context, name string) error
	Commit() error
	Rollback() error
}

// TxOptions configures transaction behavior
type TxOptions struct {
	Isolation IsolationLevel
	ReadOnly  bool
	Timeout   time.Duration
}

// IsolationLevel represents transaction isolation levels
type IsolationLevel int

const (
	IsolationDefault IsolationLevel = iota
	IsolationReadUncommitted
	IsolationReadCommitted
	IsolationRepeatableRead
	IsolationSerializable
)

// RepositoryError represents a repository-specific error
type RepositoryError struct {
	Code    string
	Message string
	Cause   error
}

func NewRepositoryError(code, message string) *RepositoryError {
	return &RepositoryError{
		Code:    code,
		Message: message,
	}
}

func (e *RepositoryError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RepositoryError) WithCause(cause error) *RepositoryError {
	return &RepositoryError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
	}
}

// PageInfo contains pagination metadata
type PageInfo struct {
	TotalCount int64
	HasMore    bool
}

// SortOrder represents sort direction
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// TimeRange represents a time interval
type TimeRange struct {
	Start time.Time
	End   time.Time
}
