// Package thumbcache holds decoded thumbnails in a bounded in-memory LRU.
//
// LRU is generic over the cached value. Thumbnails specializes it for
// images: a miss decodes the source, applies EXIF orientation and fits it
// into the thumbnail box before inserting it.
//
//	thumbs, _ := thumbcache.NewThumbnails(thumbcache.DefaultSize, 150, 150)
//	img, err := thumbs.Get("/photos/cat.jpg")
//
// Each view owns its own cache. All methods are safe for concurrent use.
package thumbcache
