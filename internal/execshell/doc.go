// Package execshell runs external commands, git in particular, behind a
// testable CommandRunner and logs every invocation with a human-readable
// description of what the command does.
package execshell
