package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/SquidDev-CC/bedrock/pkg/computer"
	"github.com/SquidDev-CC/bedrock/pkg/computer/host"
	"github.com/SquidDev-CC/bedrock/pkg/computer/persist"
	"github.com/SquidDev-CC/bedrock/pkg/computer/protocol"
	"github.com/SquidDev-CC/bedrock/pkg/computer/terminal"
)

func newSnapshotCommand(cfg *config) *cobra.Command {
	var (
		format   string
		advanced bool
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the message a client receives when opening the computer",
		Long: `Open the computer the way a host would and print the resulting
open_computer message. With --format text the terminal is drawn instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			logger, err := cfg.logger(cmd)
			if err != nil {
				return err
			}

			id := cfg.v.GetInt("computer")
			backend, closeBackend, err := cfg.backend(id, logger)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := closeBackend(); err == nil {
					err = closeErr
				}
			}()

			registry := host.NewRegistry(
				host.WithLogger(logger),
				host.WithBackend(func(int) (persist.Backend, error) { return backend, nil }),
				host.WithFactory(func(int, *string, bool, *computer.Session) error { return nil }))

			msg, err := registry.Open(id, advanced)
			if err != nil {
				return err
			}

			if format == "text" {
				return registry.With(id, func(session *computer.Session) error {
					return renderTerminal(cmd.OutOrStdout(), session.Terminal())
				})
			}

			codec, err := protocol.CodecByName(format)
			if err != nil {
				return err
			}
			data, err := protocol.Encode(codec, msg)
			if err != nil {
				return err
			}
			if codec == protocol.JSON {
				data = append(data, '\n')
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json, cbor or text")
	cmd.Flags().BoolVar(&advanced, "advanced", false, "open as an advanced computer")
	return cmd
}

// renderTerminal draws each row with its palette colours. Colour escapes
// are only emitted when w is a terminal.
func renderTerminal(w io.Writer, state *terminal.State) error {
	renderer := lipgloss.NewRenderer(w)

	for row := 0; row < state.SizeY; row++ {
		var line strings.Builder
		text, fore, back := []rune(state.Text[row]), state.Fore[row], state.Back[row]

		for start := 0; start < len(text); {
			end := start + 1
			for end < len(text) && fore[end] == fore[start] && back[end] == back[start] {
				end++
			}

			style := renderer.NewStyle().
				Foreground(lipgloss.Color(state.Palette[fore[start]].Hex())).
				Background(lipgloss.Color(state.Palette[back[start]].Hex()))
			line.WriteString(style.Render(string(text[start:end])))
			start = end
		}

		if _, err := fmt.Fprintln(w, line.String()); err != nil {
			return err
		}
	}
	return nil
}
