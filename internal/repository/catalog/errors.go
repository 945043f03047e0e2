package catalog

import "errors"

var (
	ErrItemNotFound = errors.New("item not found")
	ErrShowNotFound = errors.New("show not found")
)
