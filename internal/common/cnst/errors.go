package cnst

import "errors"

var (
	// ErrInvalidConfig wraps every configuration validation failure
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotReceiver is returned when a send-only notifier is watched
	ErrNotReceiver = errors.New("notifier cannot receive updates")
	// ErrNotSender is returned when a receive-only notifier is asked to publish
	ErrNotSender = errors.New("notifier cannot send updates")
	// ErrUnsupportedBackend is returned by factories for an unknown type
	ErrUnsupportedBackend = errors.New("unsupported backend type")
	// ErrDictionaryNotLoaded is returned when dictionary files are missing or unreadable
	ErrDictionaryNotLoaded = errors.New("dictionary not loaded")
)
