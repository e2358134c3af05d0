package lemonrest

import (
	"github.com/denismitr/lemonrest/internal/data"
	"github.com/denismitr/lemonrest/internal/storage"
	"github.com/pkg/errors"
)

var ErrRecordNotFound = errors.New("record not found")
var ErrTxIsReadOnly = errors.New("transaction is read only")
var ErrCollectionClosed = errors.New("collection already closed")
var ErrInvalidConfig = errors.New("invalid collection config")

var (
	ErrInvalidRecord = data.ErrInvalidRecord
	ErrInvalidID     = data.ErrInvalidID
	ErrPathNotFound  = data.ErrPathNotFound
	ErrParse         = storage.ErrParse
	ErrStorageFailed = storage.ErrStorageFailed
)
