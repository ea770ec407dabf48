package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"tuya-switch/internal/domain"
)

// intent lines carry a microsecond UTC timestamp
const timestampLayout = "2006-01-02 15:04:05.000000"

type Request struct {
	Selector string
	Command  string
	Delay    time.Duration
}

// Switcher looks a device up, reads its switch state and sends one command.
type Switcher struct {
	registry DeviceRegistry
	opener   DeviceOpener
	notifier Notifier
	clock    clock.Clock
	out      io.Writer
	logger   *slog.Logger
}

func NewSwitcher(
	registry DeviceRegistry,
	opener DeviceOpener,
	notifier Notifier,
	clk clock.Clock,
	out io.Writer,
	logger *slog.Logger,
) *Switcher {
	return &Switcher{
		registry: registry,
		opener:   opener,
		notifier: notifier,
		clock:    clk,
		out:      out,
		logger:   logger,
	}
}

// Run executes req. The intent line is written to the output before the
// delay elapses; the device is only commanded afterwards.
func (s *Switcher) Run(ctx context.Context, req Request) (domain.StateChange, error) {
	rec, ok := s.registry.Find(req.Selector)
	if !ok {
		return domain.StateChange{}, fmt.Errorf("%w: %q", domain.ErrDeviceNotFound, req.Selector)
	}

	cmd, err := domain.ParseCommand(req.Command)
	if err != nil {
		return domain.StateChange{}, err
	}

	logger := s.logger.With("device_id", rec.ID, "command", cmd)

	dev, err := s.opener.Open(rec)
	if err != nil {
		return domain.StateChange{}, fmt.Errorf("%w: opening device %s: %w", domain.ErrCommandFailed, rec.ID, err)
	}

	status, err := dev.Status(ctx)
	if err != nil {
		return domain.StateChange{}, fmt.Errorf("%w: %w", domain.ErrCommandFailed, err)
	}

	current, dp, ok := status.Switch()
	if !ok {
		return domain.StateChange{}, fmt.Errorf("%w: no switch state in status of %s", domain.ErrCommandFailed, rec.ID)
	}
	logger.Debug("current switch state", "on", current, "dp", dp)

	change := domain.StateChange{
		EventID:  uuid.NewString(),
		DeviceID: rec.ID,
		Command:  cmd,
		Previous: current,
		State:    cmd.Target(current),
		Time:     s.clock.Now().UTC(),
	}

	fmt.Fprintf(s.out, "%s|turning %s device id %s\n", change.Time.Format(timestampLayout), change.Verb(), rec.ID)

	if err := s.wait(ctx, req.Delay); err != nil {
		return change, fmt.Errorf("%w: waiting: %w", domain.ErrCommandFailed, err)
	}

	if err := issue(ctx, dev, cmd, current); err != nil {
		return change, fmt.Errorf("%w: %w", domain.ErrCommandFailed, err)
	}
	logger.Info("command sent", "state", change.State)

	if err := s.notifier.Notify(ctx, change); err != nil {
		logger.Warn("publishing state change", "error", err)
	}

	return change, nil
}

func issue(ctx context.Context, dev Device, cmd domain.Command, current bool) error {
	switch cmd {
	case domain.CommandOn:
		return dev.TurnOn(ctx)
	case domain.CommandOff:
		return dev.TurnOff(ctx)
	default:
		return dev.SetStatus(ctx, !current)
	}
}

func (s *Switcher) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := s.clock.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
