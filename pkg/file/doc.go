// Package file stores upload payloads on the local filesystem or in S3.
//
// Both backends implement Storage, which streams an io.Reader into a
// slash-separated key:
//
//	storage, err := file.NewLocalStorage("./uploads", "/files/")
//	if err != nil {
//		return err
//	}
//	f, err := storage.Put(ctx, "2025/cat.jpg", r, size, "image/jpeg")
//
// Keys are normalized with CleanKey. Keys containing ".." are rejected with
// ErrInvalidPath, and LocalStorage additionally verifies that the resolved
// path stays inside its base directory.
//
// S3Storage works with AWS S3 and S3-compatible services such as MinIO.
// Provider errors are classified into the sentinel errors in this package
// (ErrFileNotFound, ErrAccessDenied, ErrServiceUnavailable, ...), so callers
// can use errors.Is without depending on the AWS SDK.
//
//	storage, err := file.NewS3Storage(ctx, file.S3Config{
//		Bucket:         "media",
//		Region:         "us-east-1",
//		Endpoint:       "http://localhost:9000",
//		ForcePathStyle: true,
//	})
//
// S3Config and LocalConfig carry env tags and can be loaded with the config
// package.
package file
