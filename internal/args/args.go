package args

import (
	"errors"
	"fmt"
	"os"

	"github.com/cli/go-gh/v2/pkg/term"
	"github.com/spf13/cobra"

	"github.com/markis/omnom/internal/config"
)

const (
	CommandTag    = "tag"
	CommandEvents = "events"
	CommandChain  = "chain"
)

// Arguments represents the command-line arguments structure.
type Arguments struct {
	Command      string
	Source       string
	Literal      string
	Fields       []string
	ChunkSize    int
	ConfigPath   string
	LogLevel     string
	LogFormat    string
	UsePlainText bool
}

// stdinIsPiped reports whether stdin is a pipe or file rather than a terminal.
var stdinIsPiped = func() bool {
	stat, err := os.Stdin.Stat()
	return err == nil && (stat.Mode()&os.ModeCharDevice) == 0
}

// ParseArgs parses command-line arguments into an Arguments struct.
// Flags left unset keep their zero value and are filled from the
// configuration by Resolve.
func ParseArgs(argv []string) (Arguments, error) {
	args := Arguments{}

	rootCmd := &cobra.Command{
		Use:           "omnom <command> [flags] [source]",
		Short:         "Incrementally parse files, stdin or URLs chunk by chunk",
		SilenceErrors: true, // We'll handle error reporting
		SilenceUsage:  true, // We'll handle usage display
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&args.ConfigPath, "config", "", "Path to a config file")
	rootCmd.PersistentFlags().StringVar(&args.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&args.LogFormat, "log-format", "", "Log format (text, json, json-pretty)")
	rootCmd.PersistentFlags().BoolVar(&args.UsePlainText, "plain", false, "Disable markdown rendering")
	rootCmd.PersistentFlags().IntVar(&args.ChunkSize, "chunk-size", 0, "Bytes read per chunk")

	tagCmd := &cobra.Command{
		Use:   CommandTag + " [source]",
		Short: "Count chunks that start with a literal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  selectCommand(&args, CommandTag),
	}
	tagCmd.Flags().StringVar(&args.Literal, "literal", "", "Literal each chunk must start with")
	_ = tagCmd.MarkFlagRequired("literal")

	eventsCmd := &cobra.Command{
		Use:   CommandEvents + " [source]",
		Short: "Print the data records of an event stream",
		Args:  cobra.MaximumNArgs(1),
		RunE:  selectCommand(&args, CommandEvents),
	}

	chainCmd := &cobra.Command{
		Use:   CommandChain + " [source]",
		Short: "Split input into records of terminated fields",
		Args:  cobra.MaximumNArgs(1),
		RunE:  selectCommand(&args, CommandChain),
	}
	chainCmd.Flags().StringSliceVar(&args.Fields, "fields", nil, `Fields as name=terminator, e.g. key=:,value=\n`)
	_ = chainCmd.MarkFlagRequired("fields")

	rootCmd.AddCommand(tagCmd, eventsCmd, chainCmd)
	// cobra falls back to os.Args on a nil slice.
	rootCmd.SetArgs(append([]string{}, argv...))

	// Execute the command
	if err := rootCmd.Execute(); err != nil {
		return Arguments{}, err
	}

	if args.Command == "" {
		return Arguments{}, errors.New("no command provided")
	}
	if args.ChunkSize < 0 {
		return Arguments{}, fmt.Errorf("invalid chunk size: %d", args.ChunkSize)
	}

	return args, nil
}

func selectCommand(args *Arguments, name string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, cmdArgs []string) error {
		args.Command = name
		switch {
		case len(cmdArgs) > 0:
			args.Source = cmdArgs[0]
		case stdinIsPiped():
			args.Source = "-"
		default:
			return errors.New("no source provided")
		}
		return nil
	}
}

// Resolve fills flags that were not given from cfg.
func (a *Arguments) Resolve(cfg *config.Config) {
	if a.ChunkSize == 0 {
		a.ChunkSize = cfg.ChunkSize
	}
	if a.LogLevel == "" {
		a.LogLevel = cfg.Log.Level
	}
	if a.LogFormat == "" {
		a.LogFormat = cfg.Log.Format
	}
	a.UsePlainText = a.UsePlainText || shouldUsePlainText(cfg)
}

// shouldUsePlainText determines if plain text output should be used based on environment and terminal settings.
func shouldUsePlainText(cfg *config.Config) bool {
	// Check if the rendering format is set to plain
	if cfg.Render.Format == "plain" {
		return true
	}

	// Check if output is being redirected
	if !term.FromEnv().IsTerminalOutput() {
		return true
	}

	// Check for NO_COLOR environment variable
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}

	// Check for TERM=dumb
	if os.Getenv("TERM") == "dumb" {
		return true
	}

	return false
}
