package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Xunop/bookworm/internal/config"
	"github.com/Xunop/bookworm/internal/log"
	"github.com/Xunop/bookworm/internal/model"
	"github.com/Xunop/bookworm/internal/search"
	"github.com/Xunop/bookworm/internal/server"
	"github.com/Xunop/bookworm/internal/util"
	"github.com/Xunop/bookworm/internal/util/parsers/epub"
)

var (
	configFile string
	opts       *config.Options

	rootCmd = &cobra.Command{
		Use:           "bookworm",
		Short:         "Bookworm explodes EPUB archives and keeps them searchable",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if configFile != "" {
				opts, err = config.ParseFile(configFile)
			} else {
				opts, err = config.GetConfig()
			}
			if err != nil {
				return err
			}
			log.Init(opts)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file")

	tocCmd.Flags().Int("depth", 0, "deepest level to print, 0 for all")
	indexCmd.Flags().Int("chapter", 0, "index only this chapter")
	indexCmd.Flags().StringSlice("user", nil, "also index into these users' indexes")
	searchCmd.Flags().Int("book", 0, "search inside one book")
	searchCmd.Flags().Int("start", 1, "first result")
	searchCmd.Flags().Int("end", 0, "last result")
	searchCmd.Flags().String("sort", "", "relevance or ordinal")
	searchCmd.Flags().String("lang", "", "stemming language")
	chapterCmd.Flags().String("out", "", "write the chapter text into this directory")
	deleteIndexCmd.Flags().Int("book", 0, "drop only this book")

	rootCmd.AddCommand(addCmd, explodeCmd, tocCmd, indexCmd, reindexCmd, searchCmd, chapterCmd, deleteCmd, deleteIndexCmd, validateCmd)
}

// withServer opens the service for the duration of fn and cancels on
// interrupt.
func withServer(fn func(ctx context.Context, s *server.Server) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s, err := server.NewServer(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	return fn(ctx, s)
}

func intArg(s, name string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var addCmd = &cobra.Command{
	Use:   "add <owner> <file>",
	Short: "Store, explode and index an EPUB",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServer(func(ctx context.Context, s *server.Server) error {
			archive, err := s.AddArchive(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%d\t%s\t%s\tindexed=%v\n", archive.ID, archive.Title, archive.Author(), archive.Indexed)
			return nil
		})
	},
}

var explodeCmd = &cobra.Command{
	Use:   "explode <id>",
	Short: "Extract an archive again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := intArg(args[0], "archive id")
		if err != nil {
			return err
		}
		return withServer(func(ctx context.Context, s *server.Server) error {
			_, records, err := s.Explode(ctx, id)
			if err != nil {
				return err
			}
			for _, r := range records {
				fmt.Printf("%d\t%s\t%d\t%s\t%s\n", r.ID, r.Kind, r.Order, r.Filename, r.Title)
			}
			return nil
		})
	},
}

var tocCmd = &cobra.Command{
	Use:   "toc <file>",
	Short: "Print the table of contents of an EPUB",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")
		book, err := epub.Open(args[0])
		if err != nil {
			return err
		}
		toc := book.TOC()
		points := toc.Points
		if depth > 0 {
			points = toc.FindPoints(depth)
		}
		fmt.Println(toc.Title)
		for _, p := range points {
			fmt.Printf("%s%d %s (%s)\n", strings.Repeat("  ", p.Depth), p.PlayOrder, p.Label, p.Path)
		}
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <id>",
	Short: "Index an exploded archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := intArg(args[0], "archive id")
		if err != nil {
			return err
		}
		var chapterID *int
		if cmd.Flags().Changed("chapter") {
			c, _ := cmd.Flags().GetInt("chapter")
			chapterID = &c
		}
		users, _ := cmd.Flags().GetStringSlice("user")
		return withServer(func(ctx context.Context, s *server.Server) error {
			return s.Index(ctx, id, chapterID, users)
		})
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Index every exploded archive that is not indexed yet",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServer(func(ctx context.Context, s *server.Server) error {
			report, err := s.Reindex(ctx)
			if err != nil {
				return err
			}
			for _, job := range report.Jobs {
				if job.Err != nil {
					fmt.Printf("%d\t%s\t%s\t%v\n", job.ArchiveID, job.Owner, job.Status, job.Err)
				}
			}
			fmt.Printf("indexed %d, skipped %d, failed %d\n", report.Indexed, report.Skipped, report.Failed)
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <user> <terms...>",
	Short: "Search a user's library or one book",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := search.Query{
			Term:     strings.Join(args[1:], " "),
			Username: args[0],
		}
		if cmd.Flags().Changed("book") {
			book, _ := cmd.Flags().GetInt("book")
			q.BookID = &book
		}
		q.Start, _ = cmd.Flags().GetInt("start")
		q.End, _ = cmd.Flags().GetInt("end")
		sort, _ := cmd.Flags().GetString("sort")
		q.Sort = search.ParseSortOrder(sort)
		q.Language, _ = cmd.Flags().GetString("lang")

		return withServer(func(ctx context.Context, s *server.Server) error {
			page, err := s.Search(ctx, q)
			if err != nil {
				return err
			}
			return printJSON(page)
		})
	},
}

var chapterCmd = &cobra.Command{
	Use:   "chapter <archive-id> <chapter-id>",
	Short: "Show a chapter and its neighbors",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := intArg(args[0], "archive id")
		if err != nil {
			return err
		}
		chapterID, err := intArg(args[1], "chapter id")
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("out")
		return withServer(func(ctx context.Context, s *server.Server) error {
			current, prev, next, err := s.Chapter(id, chapterID)
			if err != nil {
				return err
			}
			show := func(label string, r *model.ContentRecord) {
				if r == nil {
					fmt.Printf("%s\t-\n", label)
					return
				}
				fmt.Printf("%s\t%d\t%s\t%s\n", label, r.ID, r.Filename, r.Title)
			}
			show("previous", prev)
			show("current", current)
			show("next", next)

			if out == "" {
				return nil
			}
			if err := os.MkdirAll(out, 0755); err != nil {
				return err
			}
			file := util.GenerateNewFileName(filepath.Join(out, filepath.Base(current.Filename)))
			if err := os.WriteFile(file, []byte(current.Text), 0644); err != nil {
				return err
			}
			fmt.Println(file)
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an archive, its records and its index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := intArg(args[0], "archive id")
		if err != nil {
			return err
		}
		return withServer(func(ctx context.Context, s *server.Server) error {
			return s.RemoveArchive(ctx, id)
		})
	},
}

var deleteIndexCmd = &cobra.Command{
	Use:   "delete-index <user>",
	Short: "Drop a user's index or one book from it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var bookID *int
		if cmd.Flags().Changed("book") {
			b, _ := cmd.Flags().GetInt("book")
			bookID = &b
		}
		return withServer(func(ctx context.Context, s *server.Server) error {
			return s.DeleteIndex(ctx, args[0], bookID)
		})
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check an EPUB locally and with the remote validator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := epub.Open(args[0]); err != nil {
			return err
		}
		return withServer(func(ctx context.Context, s *server.Server) error {
			verdict, err := s.Validate(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(verdict)
		})
	},
}

// describeError turns parser failures into a message for the uploader.
func describeError(err error) string {
	return epub.Describe(err)
}

func main() {
	err := rootCmd.Execute()
	log.Logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}
