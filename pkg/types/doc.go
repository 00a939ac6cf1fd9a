/*
Package types defines the core data structures used throughout fxcoord: the
foreign-transaction entry, the resolver's waiter and slot descriptors, and
the enums that drive FXM's and SRW's state machines.

These types are intentionally data-only; behavior lives in the packages that
own each lifecycle (pkg/fxm, pkg/resolver, pkg/syncrep). Keeping them here
lets all three share the same vocabulary without importing each other.
*/
package types
