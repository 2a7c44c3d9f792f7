package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/dtu-gateway/internal/simulator"
)

type deviceFlags struct {
	server  string
	dtu     string
	timeout time.Duration
}

func (f *deviceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.server, "server", "127.0.0.1:8888", "Gateway UDP address")
	cmd.Flags().StringVar(&f.dtu, "dtu", "13912345678", "DTU id (up to 11 ASCII bytes)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 2*time.Second, "Reply timeout")
}

func (f *deviceFlags) dial() (*simulator.Device, error) {
	return simulator.Dial(simulator.Options{Server: f.server, DTU: f.dtu, Timeout: f.timeout})
}

func newRegisterCmd() *cobra.Command {
	flags := &deviceFlags{}
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Send a register packet and wait for the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := flags.dial()
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.Register(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s from %s\n", flags.dtu, d.LocalAddr())
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newUnregisterCmd() *cobra.Command {
	flags := &deviceFlags{}
	cmd := &cobra.Command{
		Use:   "unregister",
		Short: "Send an unregister packet and wait for the reply",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := flags.dial()
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.Unregister(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unregistered %s\n", flags.dtu)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

func newAckCmd() *cobra.Command {
	flags := &deviceFlags{}
	cmd := &cobra.Command{
		Use:   "ack",
		Short: "Send a keep-alive packet",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := flags.dial()
			if err != nil {
				return err
			}
			defer d.Close()
			return d.Ack()
		},
	}
	flags.bind(cmd)
	return cmd
}

func newDataCmd() *cobra.Command {
	flags := &deviceFlags{}
	cmd := &cobra.Command{
		Use:   "data <hex>",
		Short: "Send a data packet with a hex payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseHex(args[0])
			if err != nil {
				return err
			}
			d, err := flags.dial()
			if err != nil {
				return err
			}
			defer d.Close()
			return d.SendData(payload)
		},
	}
	flags.bind(cmd)
	return cmd
}

// parseHex 允许空格和 0x 前缀，如 "02 03 16 ..." 或 "0x020316"
func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.Join(strings.Fields(s), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return b, nil
}

func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, d)
}
