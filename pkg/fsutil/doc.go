// Package fsutil holds file helpers shared by the checkpoint store and the
// installer. Everything goes through afero.Fs so tests can inject faults.
package fsutil
