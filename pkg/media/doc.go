// Package media inspects media files before they are uploaded.
//
// Probe reports size, sniffed MIME type, Kind (image, video, audio, other)
// and, for images, pixel dimensions read from the header alone. Admission
// policies probe every queued file on every cycle, so CachedProber keeps
// results until a file's size or modification time changes.
//
// Thumbnail renders a bounded JPEG preview of an image.
package media
