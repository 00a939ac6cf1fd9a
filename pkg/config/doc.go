/*
Package config holds the coordinator's runtime tunables (FXM pool sizes,
resolver retry/timeout intervals, two-phase-commit mode, synchronous
commit mode and standby names) plus the declarative YAML loader
`fxcoordctl apply -f` uses to read a StandbyGroupSpec or ForeignServerSpec
and apply it to a Coordinator that the command opens against the data
directory itself, in the same generic {apiVersion,kind,metadata,spec}
envelope shape a cobra-based CLI's apply command typically uses.
*/
package config
