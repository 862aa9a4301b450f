package domain

import "errors"

// ErrSessionNotFound no live playback session with the given ID
var ErrSessionNotFound = errors.New("Playback session not found")

// ErrInvalidPlaybackState unknown player state transition
var ErrInvalidPlaybackState = errors.New("Invalid playback state")

// ErrMissingToken request carries no bearer token
var ErrMissingToken = errors.New("Missing bearer token")
