// Package migrations holds the booking-service schema, applied with goose at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
