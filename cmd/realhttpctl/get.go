package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	realhttp "github.com/immobiliare/realhttp-go"
)

func newGetCmd() *cobra.Command {
	var outputPath string
	var large bool

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Issue a GET request and print or save the response body",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0], outputPath, large)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "save the response body to a file instead of stdout")
	cmd.Flags().BoolVar(&large, "large", false, "stream the download to a library-managed temp file, reporting progress")

	return cmd
}

func runGet(cmd *cobra.Command, path, outputPath string, large bool) error {
	client, err := newClientFromFlags()
	if err != nil {
		return err
	}

	req := realhttp.NewRequest(realhttp.MethodGet, path)

	if large {
		req.TransferMode = realhttp.TransferLargeData
	}

	if isInteractive() && !flagQuiet {
		req.Progress().Subscribe(func(p realhttp.Progress) {
			fmt.Fprintf(os.Stderr, "\r%s", p.String())
		})
	}

	resp, err := client.Fetch(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", path, err)
	}

	if isInteractive() && !flagQuiet {
		fmt.Fprintln(os.Stderr)
	}

	if resp.IsError() {
		return fmt.Errorf("request failed: %s", resp.Error.Error())
	}

	if outputPath != "" {
		data, err := resp.Data()
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}

		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outputPath, err)
		}

		statusf("Saved %s (%s)\n", outputPath, humanize.Bytes(uint64(resp.Metrics.BytesReceived)))

		return nil
	}

	return printResponse(resp)
}

// statusf prints a status message to stderr unless --quiet was set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// printResponse writes resp's body to stdout, plus a one-line status
// summary to stderr unless --quiet/--json was requested.
func printResponse(resp *realhttp.Response) error {
	data, err := resp.Data()
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if !flagJSON {
		statusf("HTTP %d (%s)\n", resp.StatusCode.Int(), humanize.Bytes(uint64(len(data))))
	}

	_, err = os.Stdout.Write(data)

	return err
}
