package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	realhttp "github.com/immobiliare/realhttp-go"
	"github.com/immobiliare/realhttp-go/stub"
)

// newStubCmd demonstrates the stub package without touching the network:
// it builds a Client whose transport is a stub.Transport wired to an echo
// stub, then fetches path through it and prints what came back.
func newStubCmd() *cobra.Command {
	var method string
	var body string

	cmd := &cobra.Command{
		Use:   "stub <path>",
		Short: "Fetch path against an in-process echo stub instead of the network",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStub(cmd, args[0], method, body)
		},
	}

	cmd.Flags().StringVar(&method, "method", "GET", "HTTP method to send")
	cmd.Flags().StringVar(&body, "body", "", "request body to echo back")

	return cmd
}

func runStub(cmd *cobra.Command, path, method, body string) error {
	stubber := stub.New()
	stubber.Enable()
	stubber.SetEcho(stub.NewEchoStub())

	client, err := realhttp.NewClient("http://stub.local",
		realhttp.WithTransport(stub.NewTransport(nil, stubber)),
		realhttp.WithValidators(realhttp.DefaultValidator(true)),
	)
	if err != nil {
		return err
	}

	req := realhttp.NewRequest(realhttp.Method(strings.ToUpper(method)), path)
	if body != "" {
		req.Body = realhttp.StringBody(body, "")
	}

	resp, err := client.Fetch(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("fetching %s against the echo stub: %w", path, err)
	}

	if resp.IsError() {
		return fmt.Errorf("stub request failed: %s", resp.Error.Error())
	}

	return printResponse(resp)
}
