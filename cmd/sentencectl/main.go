// Command sentencectl searches sentence files from the command line without
// running the HTTP service.
//
// Usage:
//
//	sentencectl --dir files/sentences list
//	sentencectl --dir files/sentences basic --corpus 1-2-0.json --phrase "the cat"
//	sentencectl --dir files/sentences advanced --corpus 1-2-0.json --slot word=The --slot len=5 --min-words 3
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/cache"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/corpus/source"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/internal/searcher/pattern"
	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	searchFlags := []cli.Flag{
		&cli.StringFlag{
			Name:     "corpus",
			Aliases:  []string{"c"},
			Usage:    "Corpus key (sentence file name)",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Print at most this many sentences (0 prints all)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the full result as JSON",
		},
	}
	return &cli.App{
		Name:      "sentencectl",
		Usage:     "Search sentence corpora by phrase or word pattern",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Directory holding sentence files",
				Value:   "files/sentences",
				EnvVars: []string{"SS_CORPUS_DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			slog.SetDefault(logger.New(c.App.ErrWriter, c.String("log-level"), "text"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List the corpora in --dir",
				Action: listCommand,
			},
			{
				Name:   "basic",
				Usage:  "Find sentences containing a phrase",
				Action: basicCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:    "phrase",
						Aliases: []string{"p"},
						Usage:   "Substring to look for (empty matches every sentence)",
					},
				}, searchFlags...),
			},
			{
				Name:   "advanced",
				Usage:  "Find sentences matching a word pattern",
				Action: advancedCommand,
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:    "slot",
						Aliases: []string{"s"},
						Usage:   "Positional constraint, word=<text> or len=<n>; repeat in order",
					},
					&cli.IntFlag{
						Name:  "min-words",
						Usage: "Minimum number of words in a sentence",
					},
					&cli.Float64Flag{
						Name:  "avg",
						Usage: "Minimum average word length",
					},
				}, searchFlags...),
			},
		},
	}
}

func newService(c *cli.Context) *searcher.Service {
	src := source.NewFileSource(c.String("dir"))
	return searcher.New(cache.New(src), executor.New(), searcher.WithLister(src))
}

func listCommand(c *cli.Context) error {
	list, err := newService(c).List(c.Context)
	if err != nil {
		return err
	}
	for _, d := range list {
		if d.Text == "" {
			fmt.Fprintln(c.App.Writer, d.Key)
			continue
		}
		fmt.Fprintf(c.App.Writer, "%s\ttext=%s lexicon=%s offset=%s\n", d.Key, d.Text, d.Lexicon, d.Offset)
	}
	return nil
}

func basicCommand(c *cli.Context) error {
	return runSearch(c, pattern.NewBasic(c.String("phrase")))
}

func advancedCommand(c *cli.Context) error {
	form := pattern.AdvancedForm{
		MinWords:      c.Int("min-words"),
		AvgWordLength: c.Float64("avg"),
	}
	for _, raw := range c.StringSlice("slot") {
		slot, err := parseSlot(raw)
		if err != nil {
			return err
		}
		form.Words = append(form.Words, slot)
	}
	q, err := pattern.Compile(form)
	if err != nil {
		return err
	}
	return runSearch(c, pattern.NewAdvanced(q))
}

// parseSlot reads word=<text> or len=<n>.
func parseSlot(raw string) (pattern.SlotForm, error) {
	kind, value, ok := strings.Cut(raw, "=")
	if !ok {
		return pattern.SlotForm{}, fmt.Errorf("slot %q: want word=<text> or len=<n>: %w", raw, apperrors.ErrInvalidInput)
	}
	switch kind {
	case "word":
		return pattern.SlotForm{Word: value}, nil
	case "len":
		n, err := pattern.ParseLength(value)
		if err != nil {
			return pattern.SlotForm{}, err
		}
		return pattern.SlotForm{Length: n}, nil
	default:
		return pattern.SlotForm{}, fmt.Errorf("slot %q: unknown kind %q: %w", raw, kind, apperrors.ErrInvalidInput)
	}
}

func runSearch(c *cli.Context, q pattern.Query) error {
	result, err := newService(c).Search(c.Context, c.String("corpus"), q, c.Int("limit"))
	if err != nil {
		return err
	}
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	for i, idx := range result.Indices {
		fmt.Fprintf(c.App.Writer, "%d\t%s\n", idx, result.Sentences[i])
	}
	fmt.Fprintf(c.App.ErrWriter, "%d matches, %d shown\n", result.Total, result.Returned)
	return nil
}
