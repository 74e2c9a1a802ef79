package rate

import "errors"

// ErrRateLimited is returned once a login budget is exhausted.
var ErrRateLimited = errors.New("rate limited")
