package entity

import "errors"

var (
	// ErrInvalidRowID is returned when a rowId is not present in the cart content.
	ErrInvalidRowID = errors.New("cart does not contain the given rowId")

	// ErrUnknownModel is returned when a model type tag cannot be resolved.
	ErrUnknownModel = errors.New("the supplied model does not exist")

	// ErrInvalidArgument is returned when an item is constructed or patched
	// with missing or malformed required attributes.
	ErrInvalidArgument = errors.New("invalid argument")
)
