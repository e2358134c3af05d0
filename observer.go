package lemonrest

import "time"

// Observer is told about every storage round trip.
type Observer interface {
	ObserveLoad(d time.Duration, records int, err error)
	ObserveSave(d time.Duration, records int, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveLoad(time.Duration, int, error) {}

func (nopObserver) ObserveSave(time.Duration, int, error) {}
