// Package cli implements the upscale-viewer command line.
//
// Commands:
//
//	upscale <files...>            upscale images through the disk cache
//	view <files...>               play files through a viewer session
//	thumbs <dir>                  build thumbnails for a directory
//	cache path|stats|verify|clear inspect and maintain the disk cache
//	settings show|set             read and edit the settings file
//	version                       print build information
//
// Every command that touches the cache accepts --metrics-addr, which serves
// Prometheus metrics and health checks while the command runs.
package cli
