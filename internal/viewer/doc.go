// Package viewer holds the display state of an image viewing session.
//
// A Session renders the source image as soon as it is shown and, when
// upscaling is enabled, swaps in the upscaled image once the background
// task delivers it. Results for images the user has already moved past
// are discarded by generation. Rendering is delegated to a Renderer so
// any front end can drive the session.
package viewer
