package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SquidDev-CC/bedrock/pkg/computer"
	"github.com/SquidDev-CC/bedrock/pkg/computer/seed"
)

func newLabelCommand(cfg *config) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "label [name]",
		Short: "Show or change the computer's label",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remove && len(args) > 0 {
				return fmt.Errorf("--clear cannot be combined with a new label")
			}

			return cfg.withSession(cmd, func(session *computer.Session) error {
				switch {
				case remove:
					return session.SetLabel(nil)
				case len(args) == 1:
					return session.SetLabel(&args[0])
				}

				if label := session.Label(); label != nil {
					fmt.Fprintln(cmd.OutOrStdout(), *label)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&remove, "clear", false, "remove the label")
	return cmd
}

func newSeedCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <manifest>",
		Short: "Install files from a YAML or JSONC manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := seed.ReadFile(args[0])
			if err != nil {
				return err
			}
			return cfg.withSession(cmd, func(session *computer.Session) error {
				return seed.Apply(session, manifest)
			})
		},
	}
}
