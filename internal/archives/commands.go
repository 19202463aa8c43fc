// Package archives implements the archive-reading CLI commands.
package archives

import "github.com/urfave/cli/v2"

var rawFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "raw",
		Usage: "Return text verbatim and binaries base64-encoded",
	},
	&cli.BoolFlag{
		Name:  "content-only",
		Usage: "Print only the content instead of the structured response",
	},
}

// Commands returns the archive-reading commands.
func Commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "list",
			Usage:  "List archives in the archive directory",
			Action: ListAction,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "fields",
					Usage: "Comma-separated descriptor fields to print, e.g. filename,title,article_count",
				},
			},
		},
		{
			Name:      "info",
			Usage:     "Show one archive's metadata",
			ArgsUsage: "<archive>",
			Action:    InfoAction,
		},
		{
			Name:      "read",
			Usage:     "Read one entry",
			ArgsUsage: "<archive> <entry-path>",
			Action:    ReadAction,
			Flags:     rawFlags,
		},
		{
			Name:      "main",
			Usage:     "Read the archive's main entry",
			ArgsUsage: "<archive>",
			Action:    MainAction,
			Flags:     rawFlags,
		},
		{
			Name:      "random",
			Usage:     "Sample random entries across archives",
			ArgsUsage: "[archive...]",
			Action:    RandomAction,
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "count",
					Aliases: []string{"n"},
					Value:   5,
					Usage:   "Number of entries to return",
				},
			},
		},
		{
			Name:      "search",
			Usage:     "Search entry titles across archives",
			ArgsUsage: "<query>",
			Action:    SearchAction,
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:  "file",
					Usage: "Archive to search (repeatable, default all)",
				},
				&cli.IntFlag{
					Name:  "limit",
					Value: 20,
					Usage: "Maximum number of results",
				},
				&cli.IntFlag{
					Name:  "offset",
					Usage: "Zero-based position of the first result",
				},
			},
		},
		{
			Name:   "stats",
			Usage:  "Show cache statistics after discovery",
			Action: StatsAction,
		},
		{
			Name:   "health",
			Usage:  "Check that the archive directory is usable",
			Action: HealthAction,
		},
		{
			Name:   "quickstart",
			Usage:  "Print the quick start guide",
			Action: QuickstartAction,
		},
	}
}
