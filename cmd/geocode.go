package main

import "github.com/spf13/cobra"

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocoding enrichment",
	Long:  "Resolve permit addresses to validated coordinates and manage geocode status.",
}

func init() { rootCmd.AddCommand(geocodeCmd) }
