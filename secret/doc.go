// Package secret resolves references in configuration values.
//
// Values may contain ${VAR} environment references, which must be set, and
// secret references of the form secretref:<provider>:<ref>. The built-in
// providers are "env" (an environment variable) and "file" (the trimmed
// contents of a file or object URL). A value like
//
//	Bearer secretref:file:~/.config/buildr/api-key
//
// resolves the inline reference and keeps the surrounding text.
package secret
