// dtusim 模拟 DTU 设备，用于联调网关
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dtusim",
		Short: "DDP DTU simulator",
		Long: `dtusim speaks the DDP protocol to a gateway over UDP. It can send single
register/unregister/ack/data packets or run as a device that answers
polls and relay commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newUnregisterCmd())
	rootCmd.AddCommand(newAckCmd())
	rootCmd.AddCommand(newDataCmd())
	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
