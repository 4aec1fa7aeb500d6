package cart

import (
	"errors"

	"github.com/noah-isme/cartkit/internal/item"
)

var (
	// ErrInvalidRowID is returned when a row id is absent from the current instance.
	ErrInvalidRowID = errors.New("invalid row id")
	// ErrCartAlreadyStored is returned by Store when (identifier, instance) is already saved.
	ErrCartAlreadyStored = errors.New("cart already stored")
	// ErrUnknownModel is returned by Associate for unregistered type names.
	ErrUnknownModel = item.ErrUnknownModel
	// ErrInvalidArgument is returned when a line or rule fails validation.
	ErrInvalidArgument = item.ErrInvalidArgument
)
