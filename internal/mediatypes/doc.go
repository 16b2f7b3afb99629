// Package mediatypes provides the image extension table shared by the codec,
// cache and thumbnail packages.
//
// It has no dependencies beyond the standard library so any package can
// import it without creating cycles.
//
//	if mediatypes.IsImageFile(name) {
//	    format := mediatypes.FormatForPath(name) // e.g. mediatypes.FormatJPEG
//	}
package mediatypes
