package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SquidDev-CC/bedrock/pkg/computer"
	"github.com/SquidDev-CC/bedrock/pkg/computer/filesystem"
)

// cleanPath turns a user supplied path such as "/rom/programs/" into the
// form used inside a computer.
func cleanPath(path string) string {
	return strings.Trim(path, "/")
}

func optionalPath(args []string) string {
	if len(args) == 0 {
		return filesystem.Root
	}
	return cleanPath(args[0])
}

func newLsCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := optionalPath(args)
			return cfg.withSession(cmd, func(session *computer.Session) error {
				children, err := session.Filesystem().List(path)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, name := range children {
					if entry, ok := session.Entry(filesystem.Join(path, name)); ok && entry.IsDirectory() {
						name += "/"
					}
					fmt.Fprintln(out, name)
				}
				return nil
			})
		},
	}
}

func newTreeCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Print every file and directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.withSession(cmd, func(session *computer.Session) error {
				out := cmd.OutOrStdout()
				return session.Filesystem().Walk(func(entry *filesystem.Entry) error {
					if entry.Path() == filesystem.Root {
						fmt.Fprintln(out, "/")
						return nil
					}
					depth := strings.Count(entry.Path(), "/")
					_, name := filesystem.Split(entry.Path())
					if entry.IsDirectory() {
						name += "/"
					}
					fmt.Fprintf(out, "%s%s\n", strings.Repeat("  ", depth+1), name)
					return nil
				})
			})
		},
	}
}

func newCatCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cleanPath(args[0])
			return cfg.withSession(cmd, func(session *computer.Session) error {
				entry, ok := session.Entry(path)
				if !ok {
					return fmt.Errorf("/%s: no such file", path)
				}
				content, err := entry.Content()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(content)
				return err
			})
		},
	}
}

func newWriteCommand(cfg *config) *cobra.Command {
	var parents bool

	cmd := &cobra.Command{
		Use:   "write <path>",
		Short: "Replace a file with standard input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cleanPath(args[0])
			content, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			return cfg.withSession(cmd, func(session *computer.Session) error {
				if parents {
					parent, _ := filesystem.Split(path)
					if _, err := session.CreateDirectory(parent); err != nil {
						return err
					}
				}
				file, err := session.CreateFile(path)
				if err != nil {
					return err
				}
				return file.SetContent(content)
			})
		},
	}

	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parent directories")
	return cmd
}

func newMkdirCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a directory and any missing parents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cleanPath(args[0])
			return cfg.withSession(cmd, func(session *computer.Session) error {
				_, err := session.CreateDirectory(path)
				return err
			})
		},
	}
}

func newRmCommand(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file or directory and everything in it",
		Long: `Delete a file or directory and everything in it. Deleting "/" empties
the computer. Missing paths are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cleanPath(args[0])
			return cfg.withSession(cmd, func(session *computer.Session) error {
				return session.DeleteEntry(path)
			})
		},
	}
}
