package archives

import (
	"fmt"

	"github.com/dtnitsch/llm-archive-reader/internal/app"
	"github.com/dtnitsch/llm-archive-reader/internal/common"
	"github.com/dtnitsch/llm-archive-reader/models"
	"github.com/dtnitsch/llm-archive-reader/pkg/help"
	"github.com/urfave/cli/v2"
)

// withApp bootstraps the App for one command and tears it down afterwards.
func withApp(c *cli.Context, fn func(a *app.App) error) error {
	a, log, err := common.Bootstrap(c)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
		_ = log.Sync()
	}()
	return fn(a)
}

func render(c *cli.Context, v any) error {
	return common.Render(c.App.Writer, c.String("format"), v)
}

// ListAction prints every archive under the archive directory.
func ListAction(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		resp, err := a.ListFiles()
		if err != nil {
			return err
		}
		fields := common.SplitList(c.String("fields"))
		if len(fields) == 0 {
			return render(c, resp)
		}
		rows := make([]map[string]any, len(resp.Files))
		for i, f := range resp.Files {
			rows[i] = common.FilterFields(f, fields)
		}
		return render(c, map[string]any{
			"directory": resp.Directory,
			"count":     resp.Count,
			"files":     rows,
		})
	})
}

// InfoAction prints one archive's metadata.
func InfoAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: lar info <archive>")
	}
	return withApp(c, func(a *app.App) error {
		resp, err := a.Metadata(c.Args().First())
		if err != nil {
			return err
		}
		return render(c, resp)
	})
}

// ReadAction prints one entry.
func ReadAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: lar read [--raw] <archive> <entry-path>")
	}
	return withApp(c, func(a *app.App) error {
		resp, err := a.ReadEntry(c.Args().Get(0), c.Args().Get(1), app.ReadOptions{Raw: c.Bool("raw")})
		if err != nil {
			return err
		}
		return printEntry(c, resp)
	})
}

// MainAction prints the archive's main entry.
func MainAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: lar main [--raw] <archive>")
	}
	return withApp(c, func(a *app.App) error {
		resp, err := a.MainEntry(c.Args().First(), app.ReadOptions{Raw: c.Bool("raw")})
		if err != nil {
			return err
		}
		return printEntry(c, resp)
	})
}

func printEntry(c *cli.Context, resp *models.EntryResponse) error {
	if c.Bool("content-only") {
		_, err := fmt.Fprintln(c.App.Writer, resp.Content)
		return err
	}
	return render(c, resp)
}

// RandomAction samples entries from the named archives, or all of them.
func RandomAction(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		resp, err := a.RandomEntries(c.Args().Slice(), c.Int("count"))
		if err != nil {
			return err
		}
		return render(c, resp)
	})
}

// SearchAction searches entry titles.
func SearchAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: lar search [--file archive]... [--limit n] [--offset n] <query>")
	}
	return withApp(c, func(a *app.App) error {
		resp, err := a.Search(c.Args().First(), c.StringSlice("file"), c.Int("limit"), c.Int("offset"))
		if err != nil {
			return err
		}
		return render(c, resp)
	})
}

// StatsAction discovers the archives and prints the resulting cache state.
func StatsAction(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		if _, err := a.ListFiles(); err != nil {
			return err
		}
		return render(c, a.CacheStats())
	})
}

// HealthAction prints whether the archive directory is usable.
func HealthAction(c *cli.Context) error {
	return withApp(c, func(a *app.App) error {
		status := a.Health()
		if err := render(c, status); err != nil {
			return err
		}
		if status.Status != "healthy" {
			return cli.Exit("archive directory is unhealthy", 1)
		}
		return nil
	})
}

// QuickstartAction prints the quick start guide.
func QuickstartAction(c *cli.Context) error {
	_, err := fmt.Fprint(c.App.Writer, help.ColdstartYAML)
	return err
}
