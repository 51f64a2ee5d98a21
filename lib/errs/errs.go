package errs

import "errors"

var ErrNotFound = errors.New("not found")

var ErrAlreadyExists = errors.New("already exists")

var ErrInternal = errors.New("internal error")

var ErrInvalidInput = errors.New("invalid input")

var ErrUnauthenticated = errors.New("user not authenticated")

var ErrForbidden = errors.New("forbidden")

// Precondition failures, raised before any network call is made.
var (
	ErrCaptchaRequired  = errors.New("captcha verification is required")
	ErrPasswordMismatch = errors.New("passwords don't match")
)

var ErrPriceUnavailable = errors.New("price unavailable")

var ErrUpstream = errors.New("upstream request failed")
