// Package failure defines the provisioning error taxonomy and maps each
// failed stage to a distinct process exit code.
package failure
