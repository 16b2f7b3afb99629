// Package settings loads, saves and distributes the viewer configuration.
//
// Files are JSON or YAML by extension. A missing file yields the defaults;
// an unreadable or invalid one yields the defaults and a warning. Saves
// are atomic and serialized across processes with a lock file. Store
// notifies Observers after each successful update.
package settings
