package b2

import "fmt"

// AuthError covers rejected credentials and network failures during the
// authorization handshake.
type AuthError struct {
	Status  int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("b2: authorize: %v", e.Err)
	}
	return fmt.Sprintf("b2: authorize rejected with status %d: %s", e.Status, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError reports a bucket name absent from both the credential's
// allowed scope and the account's bucket listing.
type NotFoundError struct {
	Bucket string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("b2: bucket %q not found", e.Bucket)
}

// ListError makes a listing pass unusable: without the complete object
// set no pruning decision is safe.
type ListError struct {
	Status  int
	Message string
	Err     error
}

func (e *ListError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("b2: list file names: %v", e.Err)
	}
	return fmt.Sprintf("b2: list file names failed with status %d: %s", e.Status, e.Message)
}

func (e *ListError) Unwrap() error { return e.Err }

// DeleteError reports a single failed version deletion. Callers treat it
// as recoverable and continue with the remaining objects.
type DeleteError struct {
	FileName string
	FileID   string
	Status   int
	Message  string
	Err      error
}

func (e *DeleteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("b2: delete %s (%s): %v", e.FileName, e.FileID, e.Err)
	}
	return fmt.Sprintf("b2: delete %s (%s) failed with status %d: %s", e.FileName, e.FileID, e.Status, e.Message)
}

func (e *DeleteError) Unwrap() error { return e.Err }
