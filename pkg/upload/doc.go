// Package upload streams local media files into a file.Storage through a
// processor.Processor whose admission policy understands media.
//
// MediaPolicy keeps heavy uploads (videos, very large files and images) from
// running next to anything else, while light uploads run in parallel and
// skip past a heavy item waiting at the head of the queue:
//
//	u, err := upload.New(storage, cfg,
//		upload.WithLogger(log),
//		upload.WithStatusStore(upload.NewMemoryStatusStore()),
//		upload.WithProgress(func(p upload.Progress) { ... }),
//	)
//	if err != nil {
//		return err
//	}
//	defer u.Close()
//
//	results, err := u.UploadDir(ctx, "./photos")
//
// Upload returns one async.Future per item. Cancel aborts every queued and
// running upload; their futures reject with processor.ErrCancelled.
//
// Statuses are kept in a StatusStore. MemoryStatusStore serves a single
// process, RedisStatusStore shares a batch between processes.
package upload
