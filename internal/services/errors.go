package services

import (
	"errors"
	"fmt"

	"mtserver/internal/models"
)

// StageError ties a job failure to the stage tag reported to the client.
type StageError struct {
	Stage models.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage models.Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage tag of err, or StageUnknown.
func StageOf(err error) models.Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return models.StageUnknown
}

// recoverAs converts a panic in fn into an error.
func recoverAs(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
