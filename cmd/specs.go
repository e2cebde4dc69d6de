package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dreamseed2025/formation-intake/internal/registry"
)

var specsCmd = &cobra.Command{
	Use:   "specs",
	Short: "Validate and list the configured field specifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, err := loadStageSpecs(cmd.Context())
		if err != nil {
			return err
		}

		// Compiling is the validation: a bad regex rejects its stage here
		// instead of at serve time.
		reg, err := registry.New(specs)
		if err != nil {
			return err
		}

		fmt.Printf("Field specs (%s source):\n", cfg.Specs.Source)
		for _, stage := range reg.Stages() {
			s, _ := reg.Stage(stage)
			fmt.Printf("\nStage %d (%d fields):\n", stage, len(s.Fields))
			for _, f := range s.Fields {
				fmt.Printf("  %-22s patterns=%d questions=%d", f.Key, len(f.Patterns), len(f.Questions))
				if f.Default != "" {
					fmt.Printf(" default=%q", f.Default)
				}
				fmt.Println()
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(specsCmd)
}
