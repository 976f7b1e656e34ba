package services

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

type releaseStep struct {
	name string
	fn   func() error
}

// releaseStack runs release actions in reverse registration order. Every
// step runs even when an earlier one fails; failures are logged and joined.
type releaseStack struct {
	steps  []releaseStep
	logger *log.Entry
}

func newReleaseStack(logger *log.Entry) *releaseStack {
	return &releaseStack{logger: logger}
}

func (s *releaseStack) push(name string, fn func() error) {
	s.steps = append(s.steps, releaseStep{name: name, fn: fn})
}

// pushFunc registers a step that cannot fail.
func (s *releaseStack) pushFunc(name string, fn func()) {
	s.push(name, func() error {
		fn()
		return nil
	})
}

func (s *releaseStack) run() error {
	var errs []error

	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]

		if err := s.runStep(step); err != nil {
			s.logger.Warnf("Release step %q failed: %v", step.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			continue
		}

		s.logger.Debugf("Released %s", step.name)
	}

	s.steps = nil

	if len(errs) > 0 {
		err := errors.Join(errs...)
		s.logger.Errorf("Resource cleanup finished with %d failure(s): %v", len(errs), err)
		return err
	}

	return nil
}

func (s *releaseStack) runStep(step releaseStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return step.fn()
}
