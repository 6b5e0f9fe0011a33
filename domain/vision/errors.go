package vision

import "errors"

var (
	// ErrInvalidImageShape is returned when a frame is not an 8-bit, 3-channel image.
	ErrInvalidImageShape = errors.New("vision: invalid image shape")
	// ErrPackNotFound is returned when a template pack directory is missing or not a directory.
	ErrPackNotFound = errors.New("vision: template pack not found")
	// ErrEmptyPack is returned when a pack directory holds no supported images.
	ErrEmptyPack = errors.New("vision: template pack is empty")
	// ErrTemplateDecode is returned when a template image cannot be decoded.
	ErrTemplateDecode = errors.New("vision: template decode failed")
	// ErrUnknownMatchMethod is returned for a method name outside the supported set.
	ErrUnknownMatchMethod = errors.New("vision: unknown match method")
)
