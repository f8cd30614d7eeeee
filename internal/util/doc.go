// Package util holds small internal helpers (JSON schema generation and
// validation, prompt templating) that are not part of the public API.
package util
