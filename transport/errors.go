package transport

import "errors"

var (
	errMissingField = errors.New("missing field")
	errMalformed    = errors.New("malformed request")
	errUnencodable  = errors.New("value cannot be encoded")
)
