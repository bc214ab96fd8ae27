package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/cachesync/internal/app"
	"github.com/gyaneshwarpardhi/cachesync/internal/event"
)

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch [message-file]",
		Short: "Apply one event message to the cache",
		Long: `Decode one webhook message (bare or SNS-wrapped) from a file, or stdin when
no file or "-" is given, and apply it synchronously. Useful for replaying a
dead-lettered message. Exits non-zero when the event fails.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := "-"
			if len(args) == 1 {
				src = args[0]
			}
			return runDispatch(rootOpts, src, cmd)
		},
	}
	return cmd
}

func runDispatch(opts *RootOptions, src string, cmd *cobra.Command) error {
	data, err := readMessage(src, cmd.InOrStdin())
	if err != nil {
		return err
	}
	ev, err := event.Decode(data)
	if err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}

	loader, err := loadConfig(opts, cmd)
	if err != nil {
		return err
	}
	cfg := loader.Config()
	logger, _ := newLogger(cfg.Log, cmd.ErrOrStderr())

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Engine.Dispatch(cmd.Context(), ev)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func readMessage(src string, stdin io.Reader) ([]byte, error) {
	if src == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	return data, nil
}
