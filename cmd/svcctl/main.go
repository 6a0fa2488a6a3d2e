// Copyright (c) 2022 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// svcctl calls a service described by a descriptor file.
//
//	svcctl call --config client.yaml --descriptor items.yaml --call getItem 42
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/svcclient"
	"go.uber.org/svcclient/svcencoding"
	"go.uber.org/svcclient/svcfactory"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd(os.Stdout, nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. A nil logger logs as configured.
func newRootCmd(out io.Writer, logger *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:          "svcctl",
		Short:        "Call services described by descriptor files",
		SilenceUsage: true,
	}
	root.AddCommand(newCallCmd(out, logger))
	return root
}

type callFlags struct {
	config     string
	descriptor string
	service    string
	call       string
	body       string
	headers    map[string]string
	timeout    time.Duration
}

func newCallCmd(out io.Writer, logger *zap.Logger) *cobra.Command {
	var flags callFlags
	cmd := &cobra.Command{
		Use:   "call [flags] [args...]",
		Short: "Invoke one call and print its response",
		Long: `Invoke one call of a service and print its response.

Positional arguments fill the call's path template: path parameters first,
then query parameters, in the order the route declares them. Streamed calls
send the body, if any, and print every message until the stream ends.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), out, logger, flags, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.config, "config", "", "client configuration file")
	f.StringVar(&flags.descriptor, "descriptor", "", "service descriptor file")
	f.StringVar(&flags.service, "service", "", "service name, overriding the descriptor's")
	f.StringVar(&flags.call, "call", "", "name of the call to invoke")
	f.StringVar(&flags.body, "body", "", "request body")
	f.StringToStringVarP(&flags.headers, "header", "H", nil, "extra request headers as key=value")
	f.DurationVar(&flags.timeout, "timeout", 10*time.Second, "how long the call may take")
	for _, name := range []string{"config", "descriptor", "call"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runCall(ctx context.Context, out io.Writer, logger *zap.Logger, flags callFlags, args []string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	desc, err := readDescriptor(flags.descriptor, flags.service)
	if err != nil {
		return err
	}

	cfgFile, err := os.Open(flags.config)
	if err != nil {
		return err
	}
	defer cfgFile.Close()

	var opts []svcfactory.Option
	if logger != nil {
		opts = append(opts, svcfactory.Logger(logger))
	}
	factory, err := svcfactory.NewFromYAML("", cfgFile, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if stopErr := factory.Stop(); err == nil {
			err = stopErr
		}
	}()

	callArgs := make([]interface{}, len(args))
	for i, a := range args {
		callArgs[i] = a
	}
	call, err := factory.Binder().BindCall(desc, flags.call, callArgs...)
	if err != nil {
		return err
	}
	for k, v := range flags.headers {
		call = call.WithHeader(k, v)
	}

	ctx, cancel := context.WithTimeout(ctx, flags.timeout)
	defer cancel()

	if call.Descriptor().Kind == svcclient.Streamed {
		return stream(ctx, out, call, flags.body)
	}
	return invoke(ctx, out, call, flags.body)
}

func readDescriptor(path, service string) (*svcclient.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loadDescriptor(f, service)
}

func invoke(ctx context.Context, out io.Writer, call *svcclient.ServiceCall, body string) error {
	desc := call.Descriptor()
	var request interface{}
	if desc.Request != nil && body != "" {
		request = encodeBody(desc.Request, body)
	}

	if desc.Response == svcencoding.JSON {
		var res json.RawMessage
		if err := call.Invoke(ctx, request, &res); err != nil {
			return err
		}
		return printLine(out, res)
	}
	var res []byte
	if err := call.Invoke(ctx, request, &res); err != nil {
		return err
	}
	return printLine(out, res)
}

func stream(ctx context.Context, out io.Writer, call *svcclient.ServiceCall, body string) error {
	s, err := call.Stream(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	desc := call.Descriptor()
	if body != "" {
		if err := s.Send(encodeBody(desc.Request, body)); err != nil {
			return err
		}
	}

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		var msg []byte
		var err error
		if desc.Response == svcencoding.JSON {
			var raw json.RawMessage
			err = s.Receive(&raw)
			msg = raw
		} else {
			err = s.Receive(&msg)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := printLine(out, msg); err != nil {
			return err
		}
	}
}

func encodeBody(s svcclient.Serializer, body string) interface{} {
	if s == svcencoding.JSON {
		return json.RawMessage(body)
	}
	return []byte(body)
}

func printLine(out io.Writer, b []byte) error {
	_, err := fmt.Fprintln(out, strings.TrimRight(string(b), "\n"))
	return err
}
