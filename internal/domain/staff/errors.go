package staff

import "errors"

var (
	ErrStaffNotFound = errors.New("staff member not found")
	ErrUsernameTaken = errors.New("username already in use")
	ErrPrimaryAdmin  = errors.New("the primary admin account cannot be removed")
	ErrInvalidRole   = errors.New("invalid staff role")
	ErrStaffIDTaken  = errors.New("staff id already in use")
)
