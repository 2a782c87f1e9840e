// Package toolchain models the base toolchain the provisioner depends on
// (interpreter, cross-compiler, static-analysis tool, locale) as an explicit
// immutable value. Child processes receive Config.Env instead of inheriting
// the ambient process environment.
package toolchain
