package media

import "errors"

var (
	ErrIsDirectory = errors.New("media: path is a directory")

	// I/O errors - wrapped with the underlying cause
	ErrFailedToOpenFile  = errors.New("media: failed to open file")
	ErrFailedToReadFile  = errors.New("media: failed to read file")
	ErrFailedToStatFile  = errors.New("media: failed to stat file")
	ErrFailedToDecode    = errors.New("media: failed to decode image")
	ErrFailedToEncode    = errors.New("media: failed to encode thumbnail")
	ErrInvalidDimensions = errors.New("media: thumbnail dimensions must be positive")
)
