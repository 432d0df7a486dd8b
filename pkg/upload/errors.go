package upload

import "errors"

var (
	ErrStorageNil     = errors.New("upload: storage is nil")
	ErrEmptyPath      = errors.New("upload: item has no path")
	ErrNotRegularFile = errors.New("upload: not a regular file")
	ErrNotDirectory   = errors.New("upload: not a directory")

	ErrFailedToOpenFile  = errors.New("upload: failed to open file")
	ErrFailedToScanDir   = errors.New("upload: failed to scan directory")
	ErrFailedToStore     = errors.New("upload: failed to store file")
	ErrFailedToLoadRules = errors.New("upload: failed to load admission rules")

	ErrStatusNotFound     = errors.New("upload: status not found")
	ErrFailedToSaveStatus = errors.New("upload: failed to save status")
	ErrFailedToReadStatus = errors.New("upload: failed to read status")
)
