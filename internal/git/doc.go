// Package git wraps the Git CLI commands the provisioner needs: clone,
// fetch, commit resolution, detached checkout, submodule initialization and
// hard reset/clean. Every command runs with the explicit environment held by
// the Client rather than the ambient process environment.
package git
