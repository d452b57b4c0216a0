package personalization

import "errors"

var (
	ErrEmptyPath       = errors.New("path is required")
	ErrInvalidPageType = errors.New("invalid page type")
	ErrEmptyProductID  = errors.New("product id is required")
	ErrEmptySectionID  = errors.New("section id is required")
	ErrInvalidSettings = errors.New("invalid personalization settings")
	ErrCorruptValue    = errors.New("corrupted stored value")
)
