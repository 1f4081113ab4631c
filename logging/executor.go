package logging

import (
	"context"
	"reflect"

	"github.com/sirupsen/logrus"
	"github.com/terraskye/cqrs"
)

type executorLogger[A cqrs.Aggregate] struct {
	logger *logrus.Entry
	next   cqrs.Executor[A]
}

func (e *executorLogger[A]) Execute(ctx context.Context, aggregateID string, command cqrs.Command[A]) error {
	return e.ExecuteWithMetadata(ctx, aggregateID, command, nil)
}

func (e *executorLogger[A]) ExecuteWithMetadata(ctx context.Context, aggregateID string, command cqrs.Command[A], metadata map[string]string) error {
	cmdType := reflect.TypeOf(command).String()
	e.logger.Infof("Dispatch: %s (aggregateID: %s)", cmdType, aggregateID)

	err := e.next.ExecuteWithMetadata(ctx, aggregateID, command, metadata)
	if err != nil {
		e.logger.Errorf("Dispatch failed: %s (aggregateID: %s): %v", cmdType, aggregateID, err)
	}

	return err
}

// WithCommandLogging wraps an Executor with logging functionality.
// It logs the command type and aggregate ID before execution, and logs
// errors if the command fails.
func WithCommandLogging[A cqrs.Aggregate](logger *logrus.Entry, next cqrs.Executor[A]) cqrs.Executor[A] {
	return &executorLogger[A]{
		logger: logger,
		next:   next,
	}
}
