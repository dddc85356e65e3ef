package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"knowledge-graph-service/internal/app"
	"knowledge-graph-service/internal/config"
	"knowledge-graph-service/internal/ingest"
	"knowledge-graph-service/internal/storage"
	"knowledge-graph-service/internal/vault"
)

func openLedger() (*storage.FailureRepo, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := storage.New(cfg.FailureDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open failure ledger: %w", err)
	}
	if err := storage.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate failure ledger: %w", err)
	}
	return storage.NewFailureRepo(db), func() { _ = db.Close() }, nil
}

func listFailuresCommand(c *cli.Context) error {
	if c.Int("limit") <= 0 {
		return fmt.Errorf("limit must be greater than 0")
	}

	repo, closeFn, err := openLedger()
	if err != nil {
		return err
	}
	defer closeFn()

	failures, err := repo.List(c.Context, c.Int("limit"), c.Bool("all"))
	if err != nil {
		return fmt.Errorf("failed to list failures: %w", err)
	}
	writeFailures(os.Stdout, failures)
	return nil
}

func writeFailures(w io.Writer, failures []storage.Failure) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEVENT\tNOTE\tUSER\tATTEMPTS\tFAILED AT\tREPLAYED\tLAST ERROR")
	for _, f := range failures {
		replayed := "-"
		if f.ReplayedAt != nil {
			replayed = f.ReplayedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\t%s\t%s\n",
			f.ID, f.EventType, f.NoteID, f.UserID, f.Attempts, f.FailedAt.Format(time.RFC3339), replayed, f.LastError)
	}
	_ = tw.Flush()
}

func replayFailuresCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one failure id is required")
	}
	ids := make([]int64, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid failure id %q", arg)
		}
		ids = append(ids, id)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	repo, closeFn, err := openLedger()
	if err != nil {
		return err
	}
	defer closeFn()

	pub, closePub, err := ingest.DialPublisher(cfg.RabbitMQURL(), ingest.DefaultTopology())
	if err != nil {
		return err
	}
	defer func() {
		_ = closePub()
	}()

	for _, id := range ids {
		messageID, err := ingest.Replay(c.Context, repo, pub, id)
		if err != nil {
			return fmt.Errorf("failed to replay failure %d: %w", id, err)
		}
		fmt.Fprintf(os.Stdout, "replayed failure %d as message %s\n", id, messageID)
	}
	return nil
}

// eventPublisher is the part of ingest.Publisher used by import.
type eventPublisher interface {
	Publish(ctx context.Context, ev ingest.Event) (string, error)
}

func importCommand(c *cli.Context) error {
	userID, startID := c.Int64("user-id"), c.Int64("start-id")
	if userID <= 0 {
		return fmt.Errorf("user-id must be greater than 0")
	}
	if startID <= 0 {
		return fmt.Errorf("start-id must be greater than 0")
	}

	files, err := vault.Scan(c.Context, c.String("dir"))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Found %d markdown files in %s\n", len(files), c.String("dir"))

	if c.Bool("dry-run") {
		return importNotes(c.Context, os.Stdout, nil, files, userID, startID)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	pub, closePub, err := ingest.DialPublisher(cfg.RabbitMQURL(), ingest.DefaultTopology())
	if err != nil {
		return err
	}
	defer func() {
		_ = closePub()
	}()

	return importNotes(c.Context, os.Stdout, pub, files, userID, startID)
}

// importNotes publishes one note.created event per file, numbering notes
// from startID in file order. Files with no content are skipped without
// using an id. A nil pub only prints the plan.
func importNotes(ctx context.Context, out io.Writer, pub eventPublisher, files []vault.File, userID, startID int64) error {
	noteID := startID
	for _, f := range files {
		note, err := vault.Read(f)
		if err != nil {
			return err
		}
		if note.Content == "" {
			fmt.Fprintf(out, "skip\t%s\tempty\n", note.RelPath)
			continue
		}

		if pub == nil {
			fmt.Fprintf(out, "plan\t%d\t%s\t%s\n", noteID, note.RelPath, note.Title)
			noteID++
			continue
		}

		title, content := note.Title, note.Content
		messageID, err := pub.Publish(ctx, ingest.Event{
			EventType: ingest.EventCreated,
			NoteID:    noteID,
			UserID:    userID,
			Title:     &title,
			Content:   &content,
		})
		if err != nil {
			return fmt.Errorf("failed to publish %s: %w", note.RelPath, err)
		}
		fmt.Fprintf(out, "queued\t%d\t%s\t%s\n", noteID, note.RelPath, messageID)
		noteID++
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	orchestrator, err := a.Orchestrator()
	if err != nil {
		return err
	}
	defer orchestrator.Release()

	result := orchestrator.Search(c.Context, c.Int64("user-id"), c.String("query"))
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
