// Package main provides the scenesync CLI entry point.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chenyanchen/scenesync"
	"github.com/chenyanchen/scenesync/adaptors"
	"github.com/chenyanchen/scenesync/engine"
	"github.com/chenyanchen/scenesync/model"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scenesync",
		Short: "Mirror scene descriptions into an in-memory rendering engine",
		Long: `scenesync builds an object model from a YAML scene description,
mirrors it into an in-memory engine and reports the resulting engine objects,
links and issues.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scenesync v%s (%s)\n", version, commit)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "sync [scene.yaml]",
		Short: "Run one pass and print engine objects, links and issues",
		Args:  cobra.ExactArgs(1),
		RunE:  runSync,
	})

	graphCmd := &cobra.Command{
		Use:   "graph [scene.yaml]",
		Short: "Print the dependency graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runGraph,
	}
	graphCmd.Flags().String("format", "dot", "Output format (dot, mermaid)")
	rootCmd.AddCommand(graphCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "watch [scene.yaml]",
		Short: "Reapply the scene description whenever the file changes",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config and --log-level and installs the logger.
func loadConfig(cmd *cobra.Command) (scenesync.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")

	cfg := scenesync.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = scenesync.LoadConfig(path); err != nil {
			return cfg, err
		}
	}
	if level != "" {
		cfg.LogLevel = level
	}
	lvl, err := cfg.Level()
	if err != nil {
		return cfg, err
	}
	cfg.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: lvl}))
	return cfg, nil
}

type session struct {
	cfg     scenesync.Config
	project *model.Project
	engine  *engine.Memory
	scene   *scenesync.Scene
}

func openScene(cmd *cobra.Command, path string) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	spec, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	project := model.NewProject(cfg.Logger)
	if err := model.Build(project, spec); err != nil {
		return nil, err
	}
	project.Commit()
	return newSession(cfg, project)
}

func newSession(cfg scenesync.Config, project *model.Project) (*session, error) {
	mem := engine.New(cfg.Logger)
	scene, err := scenesync.NewScene(adaptors.NewRegistry(), project, mem, cfg)
	if err != nil {
		return nil, err
	}
	project.Subscribe(scene)
	return &session{cfg: cfg, project: project, engine: mem, scene: scene}, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	s, err := openScene(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.scene.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, s.scene.LastReport())
	printEngine(out, s.engine)
	printIssues(out, s.scene.Issues())
	return nil
}

func runGraph(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	s, err := openScene(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.scene.Close()

	g := s.scene.Graph()
	switch format {
	case "dot":
		fmt.Fprint(cmd.OutOrStdout(), g.DOT())
	case "mermaid":
		fmt.Fprint(cmd.OutOrStdout(), g.Mermaid())
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}
	return nil
}

func printEngine(w io.Writer, mem *engine.Memory) {
	fmt.Fprintln(w, "objects:")
	for _, o := range mem.Objects() {
		suffix := ""
		if o.Resource {
			suffix = fmt.Sprintf(" refs=%d", o.Refs)
		}
		fmt.Fprintf(w, "  #%d %s %q parent=#%d%s\n", o.ID, o.Kind, o.Name, o.Parent, suffix)
	}
	fmt.Fprintln(w, "links:")
	for _, l := range mem.Links() {
		fmt.Fprintf(w, "  %s -> %s\n", l.From, l.To)
	}
}

func printIssues(w io.Writer, issues *scenesync.Issues) {
	if issues.Len() == 0 {
		fmt.Fprintln(w, "issues: none")
		return
	}
	fmt.Fprintln(w, "issues:")
	for _, it := range issues.All() {
		fmt.Fprintf(w, "  %s\n", it)
	}
}
