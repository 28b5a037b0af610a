package protocol

import "errors"

var ErrMissingType = errors.New("protocol: message has no type")
