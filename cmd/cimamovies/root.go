package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the CimaMovies CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cimamovies",
		Short: "CimaMovies - account lifecycle and session service",
		Long: `CimaMovies manages user accounts for the movie catalog: registration
with email confirmation, login with lockout, role-based authorization,
password resets, and signed stateless sessions.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG config dir)")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewBootstrapCmd())

	return cmd
}
