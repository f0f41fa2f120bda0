package application

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid connection config")
	ErrAlreadyConnected = errors.New("client is currently connected")
	ErrNotConnected     = errors.New("client was not connected")
	ErrConnect          = errors.New("failed to connect to broker")
	ErrDisconnect       = errors.New("error disconnecting")
	ErrPublish          = errors.New("publish failed")
	ErrSubscription     = errors.New("subscription failed")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrClosed           = errors.New("session controller closed")

	errMissingClientID  = errors.New("client id is required")
	errMissingWillTopic = errors.New("LWT topic required")
	errMissingTopic     = errors.New("topic is required")
)
