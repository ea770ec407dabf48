package application

import (
	"context"

	"tuya-switch/internal/domain"
)

type Device interface {
	Status(ctx context.Context) (domain.Status, error)
	TurnOn(ctx context.Context) error
	TurnOff(ctx context.Context) error
	SetStatus(ctx context.Context, on bool) error
}

type DeviceOpener interface {
	Open(rec domain.Record) (Device, error)
}

// DeviceOpenerFunc adapts a function to DeviceOpener.
type DeviceOpenerFunc func(rec domain.Record) (Device, error)

func (f DeviceOpenerFunc) Open(rec domain.Record) (Device, error) {
	return f(rec)
}

type DeviceRegistry interface {
	Find(selector string) (domain.Record, bool)
}
