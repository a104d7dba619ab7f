package rollout

import "fmt"

// StorageError wraps any failure in reading or writing the rollout store,
// so callers can distinguish a storage failure (sqlite unavailable, disk
// full, corrupt row) from a logic error without string-matching messages.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("rollout: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
