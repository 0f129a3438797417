package record

import "errors"

var (
	ErrInvalidRunID    = errors.New("invalid run ID")
	ErrInvalidFlowID   = errors.New("invalid flow ID")
	ErrInvalidVertexID = errors.New("invalid vertex ID")
	ErrInvalidRecordID = errors.New("invalid record ID")
	ErrInvalidStatus   = errors.New("invalid run status")
	ErrRunNotFound     = errors.New("run not found")

	ErrInvalidLimit     = errors.New("limit cannot be negative")
	ErrInvalidOffset    = errors.New("offset cannot be negative")
	ErrInvalidTimeRange = errors.New("invalid time range: since is after before")

	ErrSaveFailed = errors.New("failed to save record")
	ErrListFailed = errors.New("failed to list records")
)
