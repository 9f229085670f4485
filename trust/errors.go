package trust

import "fmt"

// TrustError is the umbrella for every error kind this package can
// return, following the teacher's struct-per-kind pattern
// (metadata/errors.go) so callers can type-switch or use errors.Is
// without caring about the message payload.
type TrustError interface {
	error
}

// ErrThreshold is raised when fewer valid signatures than the
// applicable threshold were found.
type ErrThreshold struct {
	Msg string
}

func (e ErrThreshold) Error() string { return fmt.Sprintf("threshold error: %s", e.Msg) }
func (e ErrThreshold) Is(target error) bool {
	_, ok := target.(ErrThreshold)
	return ok
}

// ErrRoleMetadata is raised for schema violations: unknown role enum,
// missing mandatory role, dangling keyid, wrong _type/type, invalid
// spec_version, or a version skipping ahead of current+1.
type ErrRoleMetadata struct {
	Msg string
}

func (e ErrRoleMetadata) Error() string { return fmt.Sprintf("role metadata error: %s", e.Msg) }
func (e ErrRoleMetadata) Is(target error) bool {
	_, ok := target.(ErrRoleMetadata)
	return ok
}

// ErrRollback is raised when a candidate's version is not strictly
// greater than the current trusted version.
type ErrRollback struct {
	Msg string
}

func (e ErrRollback) Error() string { return fmt.Sprintf("rollback error: %s", e.Msg) }
func (e ErrRollback) Is(target error) bool {
	_, ok := target.(ErrRollback)
	return ok
}

// ErrRoleFile is raised for filename grammar violations, wrong version
// prefixes, missing files, or I/O failures while loading a role file.
type ErrRoleFile struct {
	Msg string
}

func (e ErrRoleFile) Error() string { return fmt.Sprintf("role file error: %s", e.Msg) }
func (e ErrRoleFile) Is(target error) bool {
	_, ok := target.(ErrRoleFile)
	return ok
}

// ErrSpecVersion is raised when a candidate's spec version is neither
// the current dialect nor its immediate upgrade target.
type ErrSpecVersion struct {
	Msg string
}

func (e ErrSpecVersion) Error() string { return fmt.Sprintf("spec version error: %s", e.Msg) }
func (e ErrSpecVersion) Is(target error) bool {
	_, ok := target.(ErrSpecVersion)
	return ok
}

// ErrCrypto wraps any failure from key generation, signing,
// verify-init, or hex decoding of key/signature material.
type ErrCrypto struct {
	Msg string
	Err error
}

func (e ErrCrypto) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crypto error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("crypto error: %s", e.Msg)
}

func (e ErrCrypto) Unwrap() error { return e.Err }
func (e ErrCrypto) Is(target error) bool {
	_, ok := target.(ErrCrypto)
	return ok
}
