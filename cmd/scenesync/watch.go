package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/chenyanchen/scenesync/exp/reload"
	"github.com/chenyanchen/scenesync/model"
)

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	spec, err := model.Load(path)
	if err != nil {
		return err
	}
	rec, err := reload.New(spec, cfg.Logger)
	if err != nil {
		return err
	}
	s, err := newSession(cfg, rec.Project())
	if err != nil {
		return err
	}
	defer s.scene.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, s.scene.LastReport())
	printIssues(out, s.scene.Issues())

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Logger.Info("watching", "file", path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			next, err := model.Load(path)
			if err != nil {
				cfg.Logger.Warn("reload skipped", "err", err)
				continue
			}
			res, err := rec.Apply(next)
			if err != nil {
				cfg.Logger.Warn("reload applied with errors", "err", err)
			}
			if res.Empty() {
				continue
			}
			fmt.Fprintf(out, "reload: added=%v removed=%v updated=%v links+%v links-%v\n",
				res.Added, res.Removed, res.Updated, res.LinksAdded, res.LinksRemoved)
			fmt.Fprintln(out, s.scene.LastReport())
			printIssues(out, s.scene.Issues())
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			cfg.Logger.Warn("watcher error", "err", err)
		}
	}
}
