package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"soundboard/internal/ipc"
)

var (
	socketPath string
	timeout    time.Duration
	jsonOut    bool

	rootCmd = &cobra.Command{
		Use:           "soundboard-ctl",
		Short:         "Control a running soundboard daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", ipc.DefaultSocketPath, "daemon socket path")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print the raw JSON payload")

	rootCmd.AddCommand(commands()...)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "soundboard-ctl:", err)
		os.Exit(1)
	}
}

// request sends one command to the daemon. With --json the payload is
// printed as is; otherwise it is decoded into out and handed to render.
func request(cmd *cobra.Command, name string, args any, out any, render func(io.Writer) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	resp, err := ipc.Call(ctx, socketPath, name, args)
	if err != nil {
		return fmt.Errorf("soundboard-daemon not running: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("%s", resp.Error)
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		if len(resp.Data) == 0 {
			_, err := fmt.Fprintln(w, "null")
			return err
		}
		var v any
		if err := json.Unmarshal(resp.Data, &v); err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("decode %s reply: %w", name, err)
	}
	if render == nil {
		return nil
	}
	return render(w)
}
