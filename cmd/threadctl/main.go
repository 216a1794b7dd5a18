// Command threadctl reads and edits the comment thread of one book story.
//
//	threadctl -post <id> list
//	threadctl -post <id> count
//	threadctl -post <id> add -text "..." [-parent <id>]
//	threadctl -post <id> edit -id <id> -text "..."
//	threadctl -post <id> rm -id <id>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/asynkron/protoactor-go/actor"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"

	"bookstories/pkg/models"
	"bookstories/pkg/remote"
	"bookstories/pkg/thread"
)

type Config struct {
	remote.Config
	PageSize int `toml:"pageSize"`
}

func main() {
	var (
		configPath string
		postIDStr  string
		server     string
		logLevel   string
	)

	flag.StringVar(&configPath, "config", "configs/threadctl.toml", "Path to TOML config file")
	flag.StringVar(&postIDStr, "post", "", "Book story id.")
	flag.StringVar(&server, "server", "", "Comments service URL.")
	flag.StringVar(&logLevel, "log", "error", "Log level: debug, info, warn, error.")
	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Fatalf("[threadctl] failed to load config file %s: %v", configPath, err)
	}
	if server != "" {
		cfg.BaseURL = server
	}

	postID, err := uuid.FromString(postIDStr)
	if err != nil {
		log.Fatalf("[threadctl] invalid -post %q: %v", postIDStr, err)
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	client, err := remote.New(cfg.Config)
	if err != nil {
		log.Fatalf("[threadctl] %v", err)
	}

	engine := thread.New(actor.NewActorSystem(), client, postID, engineOptions(cfg))
	defer engine.Stop()

	if err := run(context.Background(), engine, os.Stdout, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// engineOptions gives the engine enough time to outlast a timed out service call.
func engineOptions(cfg Config) thread.Options {
	return thread.Options{
		PageSize:     cfg.PageSize,
		ReplyTimeout: 2*cfg.RequestTimeout() + time.Second,
	}
}

// run executes one command against the engine.
func run(ctx context.Context, e *thread.Engine, w io.Writer, args []string) error {
	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	var (
		text     = fs.String("text", "", "Comment text.")
		idStr    = fs.String("id", "", "Comment id.")
		parentID = fs.String("parent", "", "Root comment to reply to.")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch cmd {
	case "list":
		if !e.Refresh(ctx) {
			return lastError(e)
		}
		for e.LoadNextPage(ctx) {
		}
		st, err := waitCount(e, countWait)
		if err != nil {
			return err
		}
		if st.LastError != nil {
			return st.LastError
		}
		printThread(w, st.Comments)
		fmt.Fprintf(w, "%d comments\n", st.TotalCount)

	case "count":
		e.FetchCount(ctx)
		st, err := waitCount(e, countWait)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, st.TotalCount)

	case "add":
		parent := uuid.Nil
		if *parentID != "" {
			id, err := uuid.FromString(*parentID)
			if err != nil {
				return fmt.Errorf("invalid -parent: %w", err)
			}
			parent = id
		}
		c := e.Create(ctx, *text, parent)
		if c == nil {
			return lastError(e)
		}
		fmt.Fprintln(w, c.ID)

	case "edit":
		id, err := uuid.FromString(*idStr)
		if err != nil {
			return fmt.Errorf("invalid -id: %w", err)
		}
		if e.Update(ctx, id, *text) == nil {
			return lastError(e)
		}

	case "rm":
		id, err := uuid.FromString(*idStr)
		if err != nil {
			return fmt.Errorf("invalid -id: %w", err)
		}
		if !e.Delete(ctx, id) {
			return lastError(e)
		}

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}

const countWait = 5 * time.Second

// waitCount returns the state once no count fetch is running. The count runs in the
// background and its failures are not reported, so after d the state is returned
// as it is.
func waitCount(e *thread.Engine, d time.Duration) (thread.State, error) {
	deadline := time.Now().Add(d)
	for {
		st, err := e.State()
		if err != nil || !st.Counting || time.Now().After(deadline) {
			return st, err
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// lastError explains why the last operation returned no result.
func lastError(e *thread.Engine) error {
	st, err := e.State()
	if err != nil {
		return err
	}
	if st.LastError != nil {
		return st.LastError
	}
	return errors.New("no answer from the engine")
}

func printThread(w io.Writer, roots []*models.Comment) {
	for _, r := range roots {
		printComment(w, r, "")
		for _, reply := range r.Replies {
			printComment(w, reply, "    ")
		}
	}
}

func printComment(w io.Writer, c *models.Comment, indent string) {
	fmt.Fprintf(w, "%s%s  %s  %s\n", indent, c.ID, c.Published.Local().Format("2006-01-02 15:04"), c.Author.Name)
	for _, line := range strings.Split(c.Text, "\n") {
		fmt.Fprintf(w, "%s  %s\n", indent, line)
	}
}
