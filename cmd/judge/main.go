// Command judge runs a single program through Judge0 and prints the result as JSON.
//
//	judge --language python --file main.py
//	echo 'console.log(1)' | judge --language javascript
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/gsarma/codejudge/internal/code"
	"github.com/gsarma/codejudge/internal/config"
)

func main() {
	language := pflag.StringP("language", "l", "python", "language of the program (javascript, python, java)")
	file := pflag.StringP("file", "f", "", "source file; read from stdin when empty")
	verbose := pflag.BoolP("verbose", "v", false, "log submit and poll progress to stderr")
	pflag.Parse()

	source, err := readSource(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "judge: %v\n", err)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if *verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	cfg := config.Load(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := code.NewJudge0Client(cfg.Judge0, code.WithLogger(logger))
	res := client.Execute(ctx, *language, source)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "judge: %v\n", err)
		os.Exit(2)
	}
	if !res.Success {
		os.Exit(1)
	}
}

func readSource(path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(b), nil
}
