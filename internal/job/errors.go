package job

import "errors"

// ErrJobPoolExhausted indicates no free job id remains. The shell
// cannot address new jobs and treats this as fatal.
var ErrJobPoolExhausted = errors.New("job: maximum number of jobs exceeded")
