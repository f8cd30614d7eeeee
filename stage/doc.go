// Package stage reports caller-visible progress of a request. A Choice is the
// response being streamed; it carries content fragments and named stages that
// are opened, filled and closed in order. Reporting is a side channel: its
// failures are logged and never abort the step being reported.
package stage
