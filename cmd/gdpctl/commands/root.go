package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// cmdOut is where command output is written; overridden in tests.
var cmdOut io.Writer = os.Stdout

var (
	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// iface is the network interface gdpctl opens a raw port queue on for
	// any command that talks to a live node (e.g. "route query").
	iface string

	// aeadKeyHex and aeadNonceHex override the AEAD layer's key/nonce; both
	// empty falls back to aead.NewDefault, the same default the daemon uses.
	aeadKeyHex   string
	aeadNonceHex string
)

// rootCmd is the top-level cobra command for gdpctl.
var rootCmd = &cobra.Command{
	Use:   "gdpctl",
	Short: "Operator CLI for a gdp-router deployment",
	Long:  "gdpctl queries a running RIB node for name->address bindings and inspects a node's static routes file.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")
	rootCmd.PersistentFlags().StringVar(&iface, "iface", "eth1",
		"network interface to open a port queue on")
	rootCmd.PersistentFlags().StringVar(&aeadKeyHex, "aead-key", "",
		"hex-encoded AEAD key (defaults to the daemon's built-in key)")
	rootCmd.PersistentFlags().StringVar(&aeadNonceHex, "aead-nonce", "",
		"hex-encoded AEAD nonce (defaults to the daemon's built-in nonce)")

	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
