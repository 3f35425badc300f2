package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Lllllllleong/tenderflow/internal/config"
	"github.com/Lllllllleong/tenderflow/internal/models"
	"github.com/Lllllllleong/tenderflow/internal/progress"
	"github.com/Lllllllleong/tenderflow/internal/services"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tenderctl",
		Usage: "Run the tender pipelines against a local document directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding tender-documents/{tenderId}/*.pdf",
				EnvVars: []string{"DOCUMENTS_DIR"},
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "progress-backend",
				Usage: "Progress ledger backend (badger, firestore, mongo)",
				Value: "badger",
			},
			&cli.StringFlag{
				Name:    "progress-dir",
				Usage:   "BadgerDB directory for the progress ledger",
				EnvVars: []string{"BADGER_DIR"},
				Value:   ".tenderflow/progress",
			},
			&cli.StringFlag{
				Name:  "chunk-backend",
				Usage: "Chunk store backend (sqlite, mongo)",
				Value: "sqlite",
			},
			&cli.StringFlag{
				Name:    "chunks-db",
				Usage:   "SQLite file for embedded chunks",
				EnvVars: []string{"SQLITE_PATH"},
				Value:   ".tenderflow/chunks.db",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "classify",
				Usage:     "Find the form pages of every unfinished document of a tender",
				ArgsUsage: "<tenderId>",
				Action:    classifyCommand,
			},
			{
				Name:      "embed",
				Usage:     "Transcribe, chunk and embed every unfinished document of a tender",
				ArgsUsage: "<tenderId>",
				Action:    embedCommand,
			},
			{
				Name:      "export",
				Usage:     "Merge a tender's form pages into one PDF",
				ArgsUsage: "<tenderId>",
				Action:    exportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (default tender_{id}_forms.pdf)",
					},
					&cli.StringSliceFlag{
						Name:  "pages",
						Usage: "Pages to export as name=1,2,5; repeatable. Defaults to the classification ledger",
					},
					&cli.BoolFlag{
						Name:  "upload",
						Usage: "Also store the file under exports/ in the document directory",
					},
				},
			},
			{
				Name:      "archive",
				Usage:     "Zip every PDF of a tender",
				ArgsUsage: "<tenderId>",
				Action:    archiveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (default tender_{id}.zip)",
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Print a tender's progress ledger",
				ArgsUsage: "<tenderId>",
				Action:    statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "ledger",
						Usage: "Ledger to print (forms, documents)",
						Value: string(progress.LedgerForms),
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	switch strings.ToLower(c.String("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.String("log-level"))
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// localSettings starts from the environment and points storage at the local flags.
func localSettings(c *cli.Context) config.Settings {
	s := config.Load()
	s.DocumentsBucket = ""
	s.DocumentsDir = c.String("dir")
	s.ProgressBackend = c.String("progress-backend")
	s.BadgerDir = c.String("progress-dir")
	s.ChunkBackend = c.String("chunk-backend")
	s.SQLitePath = c.String("chunks-db")
	return s
}

func tenderArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s: exactly one <tenderId> argument is required", c.Command.Name)
	}
	return c.Args().First(), nil
}

func openStack(c *cli.Context) (*services.Stack, error) {
	return services.NewStack(c.Context, localSettings(c))
}

func classifyCommand(c *cli.Context) error {
	tenderID, err := tenderArg(c)
	if err != nil {
		return err
	}
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	f, err := services.NewFormExtractorWithStack(c.Context, stack)
	if err != nil {
		return err
	}
	report, err := f.Process(c.Context, &models.TenderRequest{TenderID: tenderID})
	if err != nil {
		return err
	}
	return printJSON(c, report)
}

func embedCommand(c *cli.Context) error {
	tenderID, err := tenderArg(c)
	if err != nil {
		return err
	}
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	f, err := services.NewTenderEmbedderWithStack(c.Context, stack)
	if err != nil {
		return err
	}
	report, err := f.Process(c.Context, &models.TenderRequest{TenderID: tenderID})
	if err != nil {
		return err
	}
	return printJSON(c, report)
}

func exportCommand(c *cli.Context) error {
	tenderID, err := tenderArg(c)
	if err != nil {
		return err
	}
	forms, err := parsePages(c.StringSlice("pages"))
	if err != nil {
		return err
	}
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	ledger, err := stack.Ledger(c.Context, progress.LedgerForms)
	if err != nil {
		return err
	}
	res, err := services.NewFormExporterWith(stack.Documents, stack.Exports, ledger).Process(c.Context, &models.FormExportRequest{
		TenderID: tenderID,
		Forms:    forms,
		Upload:   c.Bool("upload"),
	})
	if err != nil {
		return err
	}
	out := c.String("out")
	if out == "" {
		out = res.Filename
	}
	if err := writeFile(out, res.Data); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %d pages to %s\n", res.Pages, out)
	return nil
}

func archiveCommand(c *cli.Context) error {
	tenderID, err := tenderArg(c)
	if err != nil {
		return err
	}
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	name, data, err := services.NewArchiverWith(stack.Documents).Process(c.Context, tenderID)
	if err != nil {
		return err
	}
	out := c.String("out")
	if out == "" {
		out = name
	}
	if err := writeFile(out, data); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
	return nil
}

func statusCommand(c *cli.Context) error {
	tenderID, err := tenderArg(c)
	if err != nil {
		return err
	}
	ledgerKind, err := progress.ParseLedger(c.String("ledger"))
	if err != nil {
		return err
	}
	stack, err := openStack(c)
	if err != nil {
		return err
	}
	defer stack.Close()

	ledger, err := stack.Ledger(c.Context, ledgerKind)
	if err != nil {
		return err
	}
	rec, err := ledger.Record(c.Context, tenderID)
	if err != nil {
		return err
	}
	return printJSON(c, rec)
}

// parsePages reads name=1,2,5 entries.
func parsePages(entries []string) (map[string][]int, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	forms := make(map[string][]int, len(entries))
	for _, entry := range entries {
		name, list, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --pages entry %q: want name=1,2", entry)
		}
		for _, field := range strings.Split(list, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(field))
			if err != nil {
				return nil, fmt.Errorf("invalid page %q in --pages entry %q", field, entry)
			}
			forms[name] = append(forms[name], n)
		}
	}
	return forms, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

