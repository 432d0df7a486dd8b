// Package logger builds *slog.Logger values from functional options and
// provides attribute helpers shared by the processor and uploader.
//
// New picks a text or JSON handler, attaches static attributes and wraps the
// result in ContextHandler, which adds attributes pulled from the
// record's context on every call:
//
//	log := logger.New(
//		logger.WithEnvironment(os.Getenv("APP_ENV"), "mediaupload"),
//		logger.WithLevel(logger.ParseLevel(os.Getenv("LOG_LEVEL"))),
//	)
//	log.Info("upload completed", logger.UploadID(id), logger.Key(key), logger.Size(n))
//
// Attribute helpers return an empty slog.Attr for nil inputs, which slog drops.
package logger
