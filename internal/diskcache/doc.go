// Package diskcache memoizes super-resolution output on disk.
//
// Each source image maps to one file, {fingerprint}{extension}, under the
// cache root. The entry is encoded in the same codec family as its source
// and written atomically, so a reader never observes a partial file.
//
//	cache := diskcache.New(diskcache.Options{Root: filepath.Join(cacheDir, "upscaled")})
//	res, err := cache.GetOrCompute(ctx, src, func(ctx context.Context) (image.Image, error) {
//	    return enhancer.Enhance(ctx, decoded)
//	})
//
// Failure handling:
//   - A corrupt entry (ErrDecode) is removed and recomputed once.
//   - A failed write (*PersistError) is logged; the computed image is still
//     returned with Result.Persisted false.
//   - Errors from compute are returned unchanged.
//
// Entries are never evicted. Clear, Remove and Verify are the only ways
// entries leave the cache.
package diskcache
