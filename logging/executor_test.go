package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/terraskye/cqrs"
)

type testAccount struct{}

func (testAccount) AggregateType() string { return "test_account" }

type testCommand struct{}

func (testCommand) Handle(a testAccount) ([]cqrs.DomainEvent[testAccount], error) {
	return nil, nil
}

type recordingExecutor struct {
	err   error
	calls int
}

func (e *recordingExecutor) Execute(ctx context.Context, aggregateID string, command cqrs.Command[testAccount]) error {
	return e.ExecuteWithMetadata(ctx, aggregateID, command, nil)
}

func (e *recordingExecutor) ExecuteWithMetadata(ctx context.Context, aggregateID string, command cqrs.Command[testAccount], metadata map[string]string) error {
	e.calls++
	return e.err
}

func TestWithCommandLogging_DelegatesAndLogs(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	next := &recordingExecutor{}
	executor := WithCommandLogging[testAccount](logrus.NewEntry(logger), next)

	if err := executor.Execute(context.Background(), "agg-1", testCommand{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected delegation, got %d calls", next.calls)
	}
	if len(hook.Entries) != 1 || hook.Entries[0].Level != logrus.InfoLevel {
		t.Fatalf("expected one info entry, got %v", hook.Entries)
	}
}

func TestWithCommandLogging_LogsFailures(t *testing.T) {
	logger, hook := logrustest.NewNullLogger()
	next := &recordingExecutor{err: errors.New("boom")}
	executor := WithCommandLogging[testAccount](logrus.NewEntry(logger), next)

	if err := executor.Execute(context.Background(), "agg-1", testCommand{}); err == nil {
		t.Fatalf("expected error to propagate")
	}

	var sawError bool
	for _, entry := range hook.Entries {
		if entry.Level == logrus.ErrorLevel {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("expected an error log entry")
	}
}
