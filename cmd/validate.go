package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// validateCmd strictly parses and validates scenario files
var validateCmd = &cobra.Command{
	Use:   "validate <scenario.yaml>...",
	Short: "Check scenario files for unknown keys and invalid values",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		failed := 0
		for _, path := range args {
			if _, err := loadRuntimeConfig(path, "", ""); err != nil {
				logrus.Errorf("%s: %v", path, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", path)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenario files invalid", failed, len(args))
		}
		return nil
	},
}
