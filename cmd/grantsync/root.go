package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/grantsync/pkg/engine"
	"github.com/ajitpratap0/grantsync/pkg/store"
)

const envPrefix = "GRANTSYNC"

func newRootCmd(out io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "grantsync",
		Short: "Synchronize institutional grant data into a PASS repository",
		Long: `grantsync pulls grant, user and funder records from an institutional
grants database and reconciles them into a PASS repository, creating or
updating Funder, User and Grant resources so that every run converges on the
same state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(newRunCmd(v))

	root.AddCommand(&cobra.Command{
		Use:   "deployments",
		Short: "List deployment presets",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			for _, d := range engine.Deployments() {
				fmt.Fprintf(w, "%-10s %s\n", d.Name, d.Domain)
			}
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "grantsync v%s (%s)\n", version, commit)
			fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(w, "Stores: %s\n", strings.Join(store.Backends(), ", "))
		},
	})
	return root
}
