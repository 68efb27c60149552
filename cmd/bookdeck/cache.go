package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/bookdeck/internal/api"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the API response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count cached responses by kind",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		stats, err := e.cache.Stats()
		if err != nil {
			return err
		}
		return api.Output(stats)
	},
}

var cacheClearYes bool

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every cached response",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if !cacheClearYes {
			fmt.Printf("Delete all cached responses in %s? [y/N] ", e.cache.Location())
			answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Println("Aborted")
				return nil
			}
		}
		n, err := e.cache.Clear()
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d cached responses\n", n)
		return nil
	},
}

var cacheLocationCmd = &cobra.Command{
	Use:   "location",
	Short: "Print the cache directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		fmt.Println(e.cache.Location())
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVarP(&cacheClearYes, "yes", "y", false, "Do not ask for confirmation")

	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd, cacheLocationCmd)
	rootCmd.AddCommand(cacheCmd)
}
