package builder

import "fmt"

// FetchError reports that a feed could not be obtained for a date. Fatal
// for that date only; the range runner moves to the next date.
type FetchError struct {
	Date   string
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s feed unavailable for %s: %v", e.Source, e.Date, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
