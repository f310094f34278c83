// BMO is a single-operator home assistant: a chatty companion on Telegram,
// HTTP or MQTT that can also patrol the room with its camera and raise an
// alarm when it sees a stranger.
//
// Usage:
//
//	bmo serve [--config /path/to/bmo.yaml]
//	bmo enroll-check [--config /path/to/bmo.yaml]
//	bmo version
//
//	@title			BMO API
//	@version		1.0
//	@description	Local HTTP channel for talking to BMO, the home-monitoring assistant.
//	@BasePath		/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				"Bearer " followed by channels.http.token.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:   "bmo",
	Short: "BMO home-monitoring assistant",
	Long: "BMO chats with its operator over Telegram, HTTP or MQTT and patrols the room\n" +
		"with a Raspberry Pi camera, greeting the operator and warning about strangers.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bmo %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/bmo.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(enrollCheckCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
