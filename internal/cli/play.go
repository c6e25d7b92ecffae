package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/robalobadob/memory/apps/go-server/internal/config"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/symbols"
)

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Seed        uint64
	SymbolsFile string
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a game in the terminal",
		Long: `Play Memory against the local engine.

Type a card number to turn it over, r to reshuffle, q to quit.

Example:
  memory play
  memory play --seed 42 --symbols ./fruit.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level := "warn"
			if opts.LogLevel != "" {
				level = opts.LogLevel
			}
			setupLogging(level, cmd.ErrOrStderr())

			path := cfg.SymbolsFile
			if opts.SymbolsFile != "" {
				path = opts.SymbolsFile
			}
			alphabet, err := symbols.Load(path)
			if err != nil {
				return err
			}

			gopts := game.Options{
				Symbols:       alphabet,
				FlipBackDelay: cfg.FlipBackDelay,
				ShuffleDelay:  cfg.ShuffleDelay,
			}
			if opts.Seed != 0 {
				gopts.Rand = rand.New(rand.NewPCG(opts.Seed, opts.Seed))
			}
			e, err := game.New(gopts)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runPlay(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), e)
		},
	}

	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "shuffle seed (0 picks a random one)")
	cmd.Flags().StringVar(&opts.SymbolsFile, "symbols", "", "symbol file, one per line (overrides SYMBOLS_FILE)")

	return cmd
}

// console serializes output from the input loop and the engine's timers.
type console struct {
	mu      sync.Mutex
	w       io.Writer
	lastSeq int64
}

func (c *console) show(s game.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.Seq <= c.lastSeq {
		return
	}
	c.lastSeq = s.Seq
	_, _ = io.WriteString(c.w, "\n")
	_ = Render(c.w, s)
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// runPlay reads commands from in until q, EOF or ctx is done.
// Every engine change is rendered to out as it happens.
func runPlay(ctx context.Context, in io.Reader, out io.Writer, e *game.Engine) error {
	con := &console{w: out, lastSeq: -1}
	unsubscribe := e.Subscribe(con.show)
	defer unsubscribe()

	con.printf("Pick a card by number, r to reshuffle, q to quit.\n")
	con.show(e.Snapshot())

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		cmd := strings.ToLower(strings.TrimSpace(sc.Text()))
		switch cmd {
		case "":
		case "q", "quit":
			return nil
		case "r", "reset":
			e.Reset()
		default:
			n, err := strconv.Atoi(cmd)
			if err != nil {
				con.printf("unknown command %q\n", cmd)
				continue
			}
			if err := e.Select(n - 1); err != nil {
				if errors.Is(err, game.ErrIndexOutOfRange) {
					con.printf("no card %d\n", n)
					continue
				}
				return err
			}
		}
	}
	return sc.Err()
}
