package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// 退出码
const (
	exitFailure      = 1 // 回放结果与期望不符
	exitCommandError = 2 // 参数或配置错误
)

var validFormats = []string{"text", "json"}

// rootOptions 全局参数
type rootOptions struct {
	Format string
}

// exitError 携带退出码的错误
type exitError struct {
	code int
	msg  string
	err  error
}

func (e *exitError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *exitError) Unwrap() error { return e.err }

func wrapExit(code int, msg string, err error) error {
	return &exitError{code: code, msg: msg, err: err}
}

func exitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return exitFailure
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "liqguard",
		Short: "Liquidity circuit breaker",
		Long: `liqguard tracks per-asset net liquidity over a sliding window and
locks outflows once too much liquidity has left within the window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return wrapExit(exitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, validFormats), nil)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newSimulateCommand(opts))
	return cmd
}
