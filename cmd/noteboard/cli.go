package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/metrics"
	"github.com/hpungsan/noteboard/internal/ops"
	"github.com/hpungsan/noteboard/internal/schedule"
	"github.com/hpungsan/noteboard/internal/web"
)

// maxStdinBytes bounds note content piped through stdin.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *ops.Deps, log *zap.Logger, m *metrics.Metrics) *cli.App {
	if log == nil {
		log = zap.NewNop()
	}
	app := &cli.App{
		Name:    "noteboard",
		Usage:   "Notes on your machine, mirrored to your storage",
		Version: Version,
		Commands: []*cli.Command{
			saveCmd(d),
			showCmd(d),
			listCmd(d),
			deleteCmd(d),
			importCmd(d),
			shareCmd(d),
			attachCmd(d),
			exportCmd(d),
			folderCmd(d),
			syncCmd(d),
			pushCmd(d),
			loginCmd(d),
			logoutCmd(d),
			statusCmd(d),
			serveCmd(d, log, m),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// saveCmd creates the save command.
func saveCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Create a note, or edit one with --id (content from --content or stdin)",
		Flags: []cli.Flag{
			&cli.Int64Flag{Name: "id", Usage: "Id of the note to edit"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Note title"},
			&cli.StringFlag{Name: "content", Aliases: []string{"c"}, Usage: "Note content (otherwise read from stdin)"},
			&cli.BoolFlag{Name: "important", Aliases: []string{"i"}, Usage: "Mark the note important (--important=false clears it)"},
			&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder id; empty moves the note to the root"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SaveNoteInput{ID: c.Int64("id")}
			if c.IsSet("title") {
				title := c.String("title")
				input.Title = &title
			}
			if c.IsSet("content") {
				content := c.String("content")
				input.Content = &content
			} else if stdinHasData() {
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				if text != "" {
					input.Content = &text
				}
			}
			if c.IsSet("important") {
				important := c.Bool("important")
				input.Important = &important
			}
			if c.IsSet("folder") {
				folder := c.String("folder")
				input.FolderID = &folder
			}

			output, err := ops.SaveNote(c.Context, d, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// showCmd creates the show command.
func showCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a note",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := noteIDArg(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.GetNote(d, id)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List notes, important first, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Only notes in this folder; empty for root notes"},
			&cli.BoolFlag{Name: "important", Aliases: []string{"i"}, Usage: "Only important notes"},
			&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Text to match in title or content"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListNotesInput{
				ImportantOnly: c.Bool("important"),
				Query:         c.String("query"),
			}
			if c.IsSet("folder") {
				folder := c.String("folder")
				input.FolderID = &folder
			}

			return outputJSON(ops.ListNotes(d, input))
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a note and its remote file",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := noteIDArg(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.DeleteNote(c.Context, d, id)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a shared note from a reference or link",
		ArgsUsage: "<ref|link>",
		Action: func(c *cli.Context) error {
			output, err := ops.ImportShare(c.Context, d, ops.ImportShareInput{Ref: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// shareCmd creates the share command.
func shareCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "share",
		Usage:     "Publish a note and print its share reference",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := noteIDArg(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.ShareNote(c.Context, d, id)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// attachCmd creates the attach command.
func attachCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "attach",
		Usage:     "Upload a file to the remote attachments folder and link it from a note",
		ArgsUsage: "<id> <path>",
		Action: func(c *cli.Context) error {
			id, err := noteIDArg(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.AttachFile(c.Context, d, ops.AttachFileInput{NoteID: id, Path: c.Args().Get(1)})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write every note as a file in the remote file format",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Usage: "Target directory (default ~/.noteboard/exports)"},
			&cli.StringFlag{Name: "folder", Aliases: []string{"f"}, Usage: "Only notes in this folder"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportNotesInput{Dir: c.String("dir")}
			if c.IsSet("folder") {
				folder := c.String("folder")
				input.FolderID = &folder
			}

			output, err := ops.ExportNotes(c.Context, d, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// folderCmd creates the folder command and its subcommands.
func folderCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "folder",
		Usage: "Manage folders",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a folder",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					output, err := ops.CreateFolder(c.Context, d, strings.Join(c.Args().Slice(), " "))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List folders with note counts",
				Action: func(c *cli.Context) error {
					return outputJSON(ops.ListFolders(d))
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a folder; its notes move to the root",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewInvalidRequest("folder id is required"))
					}
					output, err := ops.DeleteFolder(c.Context, d, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// syncCmd creates the sync command.
func syncCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Push local changes, pull the remote folder and merge",
		Action: func(c *cli.Context) error {
			output, err := ops.Sync(c.Context, d)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// pushCmd creates the push command.
func pushCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Upload new and edited notes without pulling",
		Action: func(c *cli.Context) error {
			output, err := ops.Push(c.Context, d)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// loginCmd creates the login command.
func loginCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Store an access token (argument, stdin, or the configured token)",
		ArgsUsage: "[token]",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "ttl", Usage: "Session lifetime for tokens without an exp claim"},
		},
		Action: func(c *cli.Context) error {
			m := d.Manager()
			if m == nil {
				return outputError(errors.NewInvalidRequest("the configured remote does not use sign-in"))
			}

			token := c.Args().First()
			if token == "" && stdinHasData() {
				text, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(err)
				}
				token = text
			}

			if token == "" {
				// Fall back to the configured token source.
				if _, err := m.Token(c.Context); err != nil {
					return outputError(err)
				}
			} else {
				ttl := c.Duration("ttl")
				if ttl == 0 {
					ttl = time.Duration(d.Config.Remote.TokenTTLMinutes) * time.Minute
				}
				if _, err := m.Login(c.Context, token, ttl); err != nil {
					return outputError(err)
				}
			}

			output, err := ops.Status(c.Context, d)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// logoutCmd creates the logout command.
func logoutCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Forget the stored session",
		Action: func(c *cli.Context) error {
			if m := d.Manager(); m != nil {
				if err := m.Logout(c.Context); err != nil {
					return outputError(err)
				}
			}
			return outputJSON(map[string]bool{"signed_in": false})
		},
	}
}

// statusCmd creates the status command.
func statusCmd(d *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show note counts, pending changes and the remote session",
		Action: func(c *cli.Context) error {
			output, err := ops.Status(c.Context, d)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(d *ops.Deps, log *zap.Logger, m *metrics.Metrics) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI, optionally syncing on a schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8088, Usage: "Port to listen on"},
			&cli.StringFlag{Name: "schedule", Usage: "Cron spec for background sync (e.g. \"@every 15m\"); overrides sync_schedule"},
		},
		Action: func(c *cli.Context) error {
			spec := d.Config.SyncSchedule
			if c.IsSet("schedule") {
				spec = c.String("schedule")
			}

			if spec != "" && d.Sync != nil {
				sched, err := schedule.New(spec, func(ctx context.Context) error {
					_, err := ops.Sync(ctx, d)
					return err
				}, log)
				if err != nil {
					return outputError(err)
				}
				sched.Start()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					sched.Stop(ctx)
				}()
			} else if spec != "" {
				log.Warn("sync schedule ignored: no remote provider configured")
			}

			srv, err := web.NewServer(d, m, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(c.Context, srv, log)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var nErr *errors.NoteError
	if stderrors.As(err, &nErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", nErr.Code, nErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// noteIDArg parses the first positional argument as a note id.
func noteIDArg(c *cli.Context) (int64, error) {
	if c.NArg() == 0 {
		return 0, errors.NewInvalidRequest("note id is required")
	}
	return ops.ParseNoteID(c.Args().First())
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, failing if it exceeds limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("stdin exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}
