package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-presence/internal/presence"
	"github.com/pixil98/go-presence/internal/storage"
)

type LeaveRetryConfig struct {
	Attempts int    `json:"attempts"`
	Delay    string `json:"delay"`
}

func (c *LeaveRetryConfig) validate() error {
	el := errors.NewErrorList()

	if c.Attempts < 0 {
		el.Add(fmt.Errorf("leave_retry: attempts must not be negative"))
	}
	if c.Delay != "" {
		if _, err := time.ParseDuration(c.Delay); err != nil {
			el.Add(fmt.Errorf("leave_retry: parsing delay: %w", err))
		}
	}

	return el.Err()
}

func (c *LeaveRetryConfig) consumerOpt() (presence.ConsumerOpt, error) {
	attempts := presence.DefaultRetryAttempts
	if c.Attempts > 0 {
		attempts = c.Attempts
	}

	delay := presence.DefaultRetryDelay
	if c.Delay != "" {
		d, err := time.ParseDuration(c.Delay)
		if err != nil {
			return nil, fmt.Errorf("parsing delay: %w", err)
		}
		delay = d
	}

	return presence.WithLeaveRetry(attempts, delay), nil
}

type ExecutorConfig struct {
	MaxInFlight int64 `json:"max_in_flight"`
}

func (c *ExecutorConfig) validate() error {
	if c.MaxInFlight < 0 {
		return fmt.Errorf("executor: max_in_flight must not be negative")
	}
	return nil
}

func (c *ExecutorConfig) buildExecutor(db storage.Database) *storage.Executor {
	var opts []storage.ExecutorOpt
	if c.MaxInFlight > 0 {
		opts = append(opts, storage.WithMaxInFlight(c.MaxInFlight))
	}
	return storage.NewExecutor(db, opts...)
}
