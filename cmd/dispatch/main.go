// Command dispatch sends templated emails to every recipient in a CSV
// file through the Mailgun API.
//
// Usage:
//
//	dispatch [flags] recipients.csv
//
// The recipient file must have a header row; one column (default "email")
// holds the recipient address. Template variables are mapped from CSV
// columns with repeated -var flags, e.g. -var name:first_name.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pubnect/dispatch"
)

const defaultConfigFile = "config.json"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath   = flag.String("config", defaultConfigFile, "configuration file")
		emailColumn  = flag.String("email-column", dispatch.DefaultEmailColumn, "name of the email column in the CSV")
		createConfig = flag.Bool("create-config", false, "create a default configuration file and exit")
		dryRun       = flag.Bool("dry-run", false, "log what would be sent without sending")
	)

	fields := dispatch.FieldMap{}
	flag.Func("var", "template variable mapping var_name:csv_column (repeatable)", func(s string) error {
		name, column, ok := strings.Cut(s, ":")
		if !ok || name == "" || column == "" {
			return fmt.Errorf("invalid mapping %q, use var_name:csv_column", s)
		}
		fields[name] = column
		return nil
	})
	flag.Parse()

	if *createConfig {
		if err := dispatch.WriteDefault(defaultConfigFile); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return 1
		}
		fmt.Printf("Default configuration file %q created. Please update it with your settings.\n", defaultConfigFile)
		return 0
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] recipients.csv\n", os.Args[0])
		flag.PrintDefaults()
		return 2
	}
	csvPath := flag.Arg(0)

	logger := newLogger()
	defer logger.Sync()

	cfg, err := dispatch.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", zap.String("path", *configPath), zap.Error(err))
		return 1
	}

	var provider dispatch.Provider
	if *dryRun {
		fmt.Println("Dry run mode - no emails will be sent")
		provider = dispatch.NewDryRunProvider(logger)
	} else {
		provider, err = dispatch.NewMailgunProvider(cfg)
		if err != nil {
			logger.Error("failed to create delivery client", zap.Error(err))
			return 1
		}
	}

	pipe, err := dispatch.New(cfg, provider,
		dispatch.WithEmailColumn(*emailColumn),
		dispatch.WithFieldMap(fields),
		dispatch.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create pipeline", zap.Error(err))
		return 1
	}

	src, err := dispatch.OpenCSV(csvPath)
	if err != nil {
		logger.Error("failed to open recipient file", zap.String("path", csvPath), zap.Error(err))
		return 1
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Sending emails from %s...\n", csvPath)
	summary, err := pipe.Run(ctx, src)

	fmt.Println("\nEmail sending completed!")
	fmt.Printf("Total: %d\n", summary.Total)
	fmt.Printf("Successful: %d\n", summary.Succeeded)
	fmt.Printf("Failed: %d\n", summary.Failed)

	if err != nil {
		logger.Error("run aborted", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
