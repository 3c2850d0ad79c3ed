package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "harvest":
		return runHarvest(args[1:])
	case "download":
		return runDownload(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("speedrun-rescue: harvest and archive at-risk speedrun.com Twitch highlights")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  speedrun-rescue doctor")
	fmt.Println("  speedrun-rescue harvest --settings settings.json")
	fmt.Println("  speedrun-rescue download --settings settings.json")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  harvest   fetch verified runs, flag at-risk highlights, write report + queue")
	fmt.Println("  download  drain the persisted download queue, checkpointing after each video")
	fmt.Println("  doctor    run dependency preflight checks")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Settings select the target: set either username or game, never both")
	fmt.Println("  - harvest offers to resume an existing queue instead of re-harvesting")
	fmt.Println("  - Ctrl-C during download persists the in-flight item for the next run")
}
