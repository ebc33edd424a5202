// Package migrations holds the notification-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
