package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/dtu-gateway/internal/simulator"
)

type runFlags struct {
	deviceFlags
	interval  time.Duration
	slave     uint8
	registers string
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register, answer polls and relay commands until interrupted",
		Long: `Registers with the gateway, then answers every downlink Modbus frame:
0x03 polls get the configured register values, 0x06 writes are echoed.
A keep-alive is sent every --interval. Ctrl-C unregisters and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(cmd, flags)
		},
	}
	flags.bind(cmd)
	cmd.Flags().DurationVar(&flags.interval, "interval", 30*time.Second, "Keep-alive interval (0 disables)")
	cmd.Flags().Uint8Var(&flags.slave, "slave", 2, "Modbus slave address")
	cmd.Flags().StringVar(&flags.registers, "registers", "", "Comma separated holding register values (default 1..11)")
	return cmd
}

func runDevice(cmd *cobra.Command, flags *runFlags) error {
	values, err := parseRegisters(flags.registers)
	if err != nil {
		return err
	}
	d, err := simulator.Dial(simulator.Options{
		Server:    flags.server,
		DTU:       flags.dtu,
		Slave:     flags.slave,
		Registers: values,
		Timeout:   flags.timeout,
	})
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Register(ctx); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "registered %s from %s, waiting for commands\n", flags.dtu, d.LocalAddr())

	err = d.Run(ctx, flags.interval, func(ev simulator.Event) {
		switch {
		case ev.Err != nil:
			fmt.Fprintf(out, "rx %s error: %v\n", hex.EncodeToString(ev.Frame), ev.Err)
		case ev.Reply != nil:
			fmt.Fprintf(out, "rx %s -> tx %s\n", hex.EncodeToString(ev.Modbus), hex.EncodeToString(ev.Reply))
		default:
			fmt.Fprintf(out, "rx %s ignored\n", hex.EncodeToString(ev.Frame))
		}
	})
	if err != nil {
		return err
	}

	uctx, cancel := withTimeout(cmd.Context(), flags.timeout)
	defer cancel()
	if err := d.Unregister(uctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "unregistered %s\n", flags.dtu)
	return nil
}

func parseRegisters(s string) ([]uint16, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]uint16, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid register value %q: %w", p, err)
		}
		out = append(out, uint16(v))
	}
	return out, nil
}
