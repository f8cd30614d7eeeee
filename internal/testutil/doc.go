// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing conversations and scripted agent replies.
// They are not intended for production usage.
package testutil
