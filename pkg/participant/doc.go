/*
Package participant defines the optional-capability contract every
foreign-data-source adapter implements to plug into FXM: Driver (commit,
rollback; required) plus the narrower Preparer, Resolver, and PrepareIDer
interfaces a driver type-asserts into, mirroring the way io.Reader callers
probe for io.ReaderAt rather than testing a capability bitmask.

Registry is the static adapter table FXM consults by name; DefaultMakePrepareID
mints a bounded-length id for drivers lacking their own PrepareIDer.
pkg/participant/testdriver ships an in-memory driver implementing every
capability, for tests that exercise FXM and the resolver without a real
foreign server.
*/
package participant
