package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/hairizuanbinnoorazman/shotdiff/config"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Check a capture config for errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			if _, err := a.loadConfig(args[0]); err != nil {
				return err
			}
			printMessage("%s is valid", args[0])
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with capture config files",
	}
	cmd.AddCommand(newConfigFmtCmd())
	return cmd
}

func newConfigFmtCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "fmt <config.yaml>",
		Short: "Re-serialize a capture config in canonical form",
		Long: `Parse the config and write it back out with two-space indentation.
Imports are not merged and defaults are not added. Every key of the input is
kept with its value and comments as written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Parse(data)
			if err != nil {
				return err
			}
			out, err := config.Marshal(cfg)
			if err != nil {
				return err
			}

			if !write {
				_, err := cmd.OutOrStdout().Write(out)
				return err
			}
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			return renameio.WriteFile(args[0], out, info.Mode().Perm())
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")
	return cmd
}

// configInfo is the summary printed by the info command.
type configInfo struct {
	Config      string            `json:"config"`
	Browser     string            `json:"browser"`
	Domains     map[string]string `json:"domains"`
	Order       []string          `json:"domain_order"`
	Paths       int               `json:"paths"`
	Widths      []string          `json:"screen_widths"`
	Directory   string            `json:"directory"`
	HistoryDir  string            `json:"history_dir,omitempty"`
	Fuzz        string            `json:"fuzz"`
	Threshold   float64           `json:"threshold"`
	Mode        string            `json:"mode"`
	Template    string            `json:"template"`
	SpiderSkips []string          `json:"spider_skips,omitempty"`
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <config.yaml>",
		Short: "Summarise a capture config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig(args[0])
			if err != nil {
				return err
			}

			info := configInfo{
				Config:     args[0],
				Browser:    cfg.Browser,
				Domains:    map[string]string{},
				Order:      cfg.DomainLabels(),
				Paths:      len(cfg.Paths),
				Directory:  cfg.Directory,
				HistoryDir: cfg.HistoryDir,
				Fuzz:       cfg.Fuzz,
				Threshold:  cfg.Threshold,
				Mode:       string(cfg.Mode),
				Template:   cfg.Gallery.Template,
			}
			for _, d := range cfg.Domains {
				info.Domains[d.Label] = d.URL
			}
			for _, w := range cfg.ScreenWidths {
				info.Widths = append(info.Widths, w.String())
			}
			for _, s := range cfg.SpiderSkips {
				info.SpiderSkips = append(info.SpiderSkips, s.String())
			}

			if flagJSON {
				printJSON(info)
				return nil
			}

			var domains []string
			for _, label := range info.Order {
				domains = append(domains, fmt.Sprintf("%s=%s", label, info.Domains[label]))
			}
			paths := strconv.Itoa(info.Paths)
			if info.Paths == 0 {
				paths = "spidered (" + cfg.SpiderFile + ")"
			}
			printTable([]string{"KEY", "VALUE"}, [][]string{
				{"browser", info.Browser},
				{"domains", strings.Join(domains, " ")},
				{"paths", paths},
				{"screen_widths", strings.Join(info.Widths, " ")},
				{"directory", info.Directory},
				{"fuzz", info.Fuzz},
				{"threshold", strconv.FormatFloat(info.Threshold, 'f', -1, 64)},
				{"mode", info.Mode},
				{"gallery", info.Template},
				{"spider_skips", strings.Join(info.SpiderSkips, " ")},
			})
			return nil
		},
	}
}
