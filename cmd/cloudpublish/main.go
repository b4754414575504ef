package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/cloudpublish/internal/core/domain"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess           = 0
	ExitConfigError       = 1
	ExitRemoteError       = 2
	ExitCertificateError  = 3
	ExitVerificationError = 4
	ExitServerError       = 5
	ExitInterrupted       = 130
)

const usage = `usage: cloudpublish [-config file] <command> [flags]

commands:
  publish    package, upload and deploy to a hosted service slot
  start      start the deployment in a slot and wait until it is ready
  stop       suspend the deployment in a slot
  status     show the deployment in a slot
  emulator   serve the management API locally
  version    print version and exit
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cloudpublish", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "Path to config file")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitConfigError
	}

	if *showVersion || fs.Arg(0) == "version" {
		fmt.Fprintf(stdout, "cloudpublish %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return ExitConfigError
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitConfigError
	}
	logger := SetupLogger(cfg, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		config: cfg,
		logger: logger,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "publish":
		return a.runPublish(ctx, cmdArgs)
	case "start":
		return a.runStart(ctx, cmdArgs)
	case "stop":
		return a.runStop(ctx, cmdArgs)
	case "status":
		return a.runStatus(ctx, cmdArgs)
	case "emulator":
		return a.runEmulator(ctx, cmdArgs)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		fs.Usage()
		return ExitConfigError
	}
}

// exitCode maps an error to the process exit code by its kind.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	switch domain.KindOf(err) {
	case domain.KindConfig:
		return ExitConfigError
	case domain.KindCertificate:
		return ExitCertificateError
	case domain.KindVerification:
		return ExitVerificationError
	default:
		return ExitRemoteError
	}
}
