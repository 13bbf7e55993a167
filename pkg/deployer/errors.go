package deployer

import "fmt"

// ConnectionError means the session could not be opened or authenticated.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NavigationError means the remote root could not be entered, even after
// one attempt to create it.
type NavigationError struct {
	Dir string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("change to remote root %s: %v", e.Dir, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// LocalRootError means the local root is missing, not a directory or not
// readable.
type LocalRootError struct {
	Path string
	Err  error
}

func (e *LocalRootError) Error() string {
	return fmt.Sprintf("local root %s: %v", e.Path, e.Err)
}

func (e *LocalRootError) Unwrap() error {
	return e.Err
}
