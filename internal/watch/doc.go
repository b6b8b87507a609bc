// Package watch reports rewrites of local snapshot files made by other
// processes, such as the external record editor.
package watch
