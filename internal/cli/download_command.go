package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"speedrun-rescue/internal/config"
	"speedrun-rescue/internal/runstore"
	"speedrun-rescue/internal/ytdlp"
)

func runDownload(args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	settingsPath := fs.String("settings", "settings.json", "path to the settings file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings, err := config.Load(*settingsPath)
	if err != nil {
		return err
	}
	paths := resolveTargetPaths(settings)

	lock, err := runstore.AcquireTargetLock(paths.Dir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return drainQueue(ctx, settings, paths)
}

func runDoctor(args []string) error {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := ytdlp.CheckDependencies(); err != nil {
		fmt.Println(errorStyle.Render(err.Error()))
		return err
	}
	fmt.Println(okStyle.Render("yt-dlp and ffmpeg found"))
	return nil
}
