package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// exposeCmd spins up a standalone loopback endpoint for one operation and
// blocks until interrupted. Useful for pointing another local tool at a
// single operation without running the full API server.
var exposeCmd = &cobra.Command{
	Use:   "expose <operation>",
	Short: "Expose one operation as a standalone HTTP endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		name := args[0]
		w, ok := appInstance.Wrapper(name)
		if !ok {
			return fmt.Errorf("unknown operation %q (available: %v)", name, appInstance.OperationNames())
		}

		addr, err := appInstance.Registry.Create(w)
		if err != nil {
			return fmt.Errorf("failed to expose %s: %w", name, err)
		}
		fmt.Printf("Operation %q exposed at %s (POST JSON {\"reference\": ...})\n", name, addr)

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop

		log.Infof("Shutting down endpoint for %s", name)
		return appInstance.Registry.Close(name)
	},
}

func init() {
	rootCmd.AddCommand(exposeCmd)
}
