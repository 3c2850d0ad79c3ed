package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"speedrun-rescue/internal/config"
	"speedrun-rescue/internal/download"
	"speedrun-rescue/internal/highlight"
	"speedrun-rescue/internal/model"
	"speedrun-rescue/internal/runstore"
	"speedrun-rescue/internal/srcapi"
	"speedrun-rescue/internal/twitch"
	"speedrun-rescue/internal/ytdlp"
)

func runHarvest(args []string) error {
	fs := flag.NewFlagSet("harvest", flag.ContinueOnError)
	settingsPath := fs.String("settings", "settings.json", "path to the settings file")
	resume := fs.Bool("resume", false, "resume an existing queue without prompting")
	fresh := fs.Bool("fresh", false, "re-harvest even when a queue with pending items exists")
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

	if !*fresh {
		queue, err := download.LoadQueue(paths.Queue)
		if err == nil && len(queue.Items) > 0 {
			doResume := *resume
			if !doResume {
				doResume, err = confirmResume(len(queue.Items))
				if err != nil {
					return err
				}
			}
			if doResume {
				fmt.Println(infoStyle.Render(fmt.Sprintf("resuming existing queue with %d items", len(queue.Items))))
				return drainQueue(ctx, settings, paths)
			}
		}
	}

	if err := harvest(ctx, settings, paths); err != nil {
		return err
	}

	if settings.DownloadVideos {
		return drainQueue(ctx, settings, paths)
	}
	fmt.Println(infoStyle.Render("downloads disabled in settings, queue saved for later"))
	return nil
}

// harvest runs the full pipeline: fetch verified runs, extract Twitch
// highlights, flag at-risk channels, and write the report, the structured
// highlight list, and a fresh download queue.
func harvest(ctx context.Context, settings config.Settings, paths targetPaths) error {
	// SPEEDRUN_API_URL overrides the API base, for tests and proxies.
	client := srcapi.NewClient(srcapi.ClientOptions{
		BaseURL:  os.Getenv("SPEEDRUN_API_URL"),
		CacheDir: paths.APICache,
	})

	query := srcapi.RunsQuery{}
	if settings.UserMode() {
		userID, err := client.UserID(ctx, settings.Username)
		if err != nil {
			if errors.Is(err, srcapi.ErrNotFound) {
				return fmt.Errorf("user %q not found on speedrun.com", settings.Username)
			}
			return err
		}
		query.UserID = userID
	} else {
		gameID, err := client.GameID(ctx, settings.Game)
		if err != nil {
			if errors.Is(err, srcapi.ErrNotFound) {
				return fmt.Errorf("game %q not found on speedrun.com", settings.Game)
			}
			return err
		}
		query.GameID = gameID
	}

	runs, err := client.FetchAllRuns(ctx, query)
	if err != nil {
		return err
	}
	fmt.Printf("fetched %d verified runs\n", len(runs))

	if settings.SaveOnlyPBs && settings.UserMode() {
		pbs, err := client.PersonalBests(ctx, query.UserID)
		if err != nil {
			return err
		}
		runs = highlight.FilterPersonalBests(runs, pbs)
		fmt.Printf("%d runs remain after the personal-best filter\n", len(runs))
	}

	highlights, urls := highlight.Extract(runs, settings.IgnoreLinksInDescription)
	fmt.Printf("extracted %d highlights with %d twitch video urls\n", len(highlights), len(urls))

	marked, err := flagAtRisk(ctx, settings, paths, highlights, urls)
	if err != nil {
		return err
	}
	fmt.Println(infoStyle.Render(fmt.Sprintf("%d urls flagged as at risk", marked)))

	if err := highlight.WriteReport(paths.Report, highlights); err != nil {
		return err
	}
	if err := highlight.WriteHighlights(paths.Highlights, highlights); err != nil {
		return err
	}
	if err := highlight.SeedQueue(paths.Queue, highlights); err != nil {
		return err
	}
	fmt.Printf("report written to %s, queue seeded at %s\n", paths.Report, paths.Queue)
	return nil
}

// flagAtRisk annotates highlight URLs with the risk marker. Without Twitch
// credentials no usage data exists, so every highlight counts as at risk.
func flagAtRisk(ctx context.Context, settings config.Settings, paths targetPaths, highlights []model.Highlight, urls []string) (int, error) {
	if !settings.HasTwitchCredentials() {
		fmt.Println(warnStyle.Render("no twitch credentials configured, treating every highlight as at risk"))
		return highlight.Annotate(highlights, nil, true), nil
	}

	api, err := twitch.NewHelixClient(settings.TwitchClientID, settings.TwitchClientSecret)
	if err != nil {
		return 0, err
	}
	usage := twitch.LoadUsageCache(paths.UsageCache, api)
	if err := usage.Refresh(ctx, urls); err != nil {
		return 0, err
	}
	if err := usage.WriteChannelRoster(paths.Roster); err != nil {
		return 0, err
	}
	return highlight.Annotate(highlights, usage.IsAtRisk, false), nil
}

// drainQueue runs the downloader over the persisted queue.
func drainQueue(ctx context.Context, settings config.Settings, paths targetPaths) error {
	if err := ytdlp.CheckDependencies(); err != nil {
		return err
	}
	quality, err := settings.Quality()
	if err != nil {
		return err
	}
	if err := runstore.Mkdir(paths.Videos); err != nil {
		return err
	}

	processor := &download.Processor{
		QueuePath:           paths.Queue,
		OutputDir:           paths.Videos,
		ProvenancePath:      paths.Provenance,
		Quality:             quality,
		AllowAll:            settings.AllowAll,
		ConcurrentFragments: settings.ConcurrentFragments,
		EchoOutput:          true,
	}
	outcomes, err := processor.Run(ctx)
	printOutcomeSummary(outcomes)
	return err
}
