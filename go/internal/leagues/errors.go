package leagues

import "errors"

var ErrDivisionNotFound = errors.New("division not found")
