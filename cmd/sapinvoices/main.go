package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "sapinvoices",
		Short:   "Transmit library invoices from Alma to SAP accounts payable",
		Version: Version,
	}

	rootCmd.AddCommand(processCmd())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
