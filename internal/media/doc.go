// Package media decodes and encodes the images the upscale cache works on.
//
// Decoding applies EXIF orientation and accepts JPEG, PNG, GIF, BMP, TIFF
// and WebP. Encode writes an image back in the codec family of its source
// so cache entries keep the original extension. LoadThumbnail fits a source
// into a thumbnail box, using libvips decode-time shrinking when InitVips
// has been called and the imaging package otherwise.
package media
