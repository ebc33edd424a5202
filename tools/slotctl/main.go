// Command slotctl is an operator tool for a running booking-service.
package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "slotctl",
		Short:         "Inspect timezones, slots and health of a meetslot deployment",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("base-url", getenv("BASE_URL", "http://localhost:8083"), "booking-service HTTP base url")
	root.PersistentFlags().Duration("timeout", 10*time.Second, "request timeout")

	root.AddCommand(newOffsetCmd(), newSlotsCmd(), newHealthCmd(), newHashPasswordCmd())
	return root
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
