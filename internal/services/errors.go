package services

import "errors"

// ErrValidation marks malformed or inconsistent input, such as a mismatched
// password confirmation or an unknown status value. Handlers map it to a
// 400-class response.
var ErrValidation = errors.New("validation failed")
