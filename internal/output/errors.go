package output

import "errors"

var (
	ErrDecode      = errors.New("output decode failed")
	ErrUnknownKind = errors.New("unknown output kind")
)
