package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/relstore/relstore/internal/engine"
	"github.com/relstore/relstore/internal/relerr"
	"github.com/relstore/relstore/internal/system"
)

const defaultCacheSize = 256

// run opens the data root, wires the executor, and either replays a file or
// starts the interactive loop, depending on cfg and stdin's terminal-ness.
func run(cfg config) error {
	sys, err := system.New(cfg.path, defaultCacheSize)
	if err != nil {
		return fmt.Errorf("open %s: %w", cfg.path, err)
	}
	defer sys.Shutdown()

	installShutdownHandler(sys)

	exec := engine.New(sys)
	if cfg.database != "" {
		if _, err := exec.Execute("USE DATABASE " + cfg.database); err != nil {
			return err
		}
	}

	if cfg.file != "" {
		return runFile(exec, cfg)
	}

	interactive := !cfg.batch && isatty.IsTerminal(os.Stdin.Fd())
	return runREPL(exec, cfg, interactive)
}

// installShutdownHandler flushes catalog sidecars and closes file handles on
// SIGINT/SIGTERM, so an interrupted REPL still leaves the data directory
// consistent.
func installShutdownHandler(sys *system.System) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		_ = sys.Shutdown()
		os.Exit(130)
	}()
}

func runFile(exec *engine.Executor, cfg config) error {
	data, err := os.ReadFile(cfg.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", cfg.file, err)
	}
	statements := splitStatements(string(data))
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		result, err := exec.Execute(stmt)
		if err != nil {
			return err
		}
		printResult(result, cfg.batch)
	}
	return nil
}

// splitStatements breaks src on top-level ';' terminators (the grammar has
// no statement-internal semicolons, so this needs no quote tracking beyond
// skipping ones inside a quoted string literal).
func splitStatements(src string) []string {
	var out []string
	var cur strings.Builder
	inQuote := byte(0)
	for i := 0; i < len(src); i++ {
		c := src[i]
		if inQuote != 0 {
			cur.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inQuote = c
			cur.WriteByte(c)
		case ';':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		out = append(out, cur.String())
	}
	return out
}

func runREPL(exec *engine.Executor, cfg config, interactive bool) error {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 1024), 1024*1024)

	var buf strings.Builder
	firstPrompt := true

	if interactive {
		fmt.Println("reldb — type SQL statements terminated by ';', or 'exit' to quit.")
	}

	for {
		if buf.Len() == 0 && interactive {
			if !firstPrompt {
				fmt.Println()
			}
			firstPrompt = false
			prompt := "reldb> "
			if cfg.table != "" {
				prompt = cfg.table + "> "
			}
			fmt.Print(prompt)
		} else if interactive {
			fmt.Print(" ... ")
		}

		if !sc.Scan() {
			break
		}
		line := sc.Text()
		if buf.Len() == 0 && strings.EqualFold(strings.TrimSpace(line), "exit") {
			break
		}
		buf.WriteString(line)
		buf.WriteByte('\n')

		if !strings.Contains(buf.String(), ";") {
			continue
		}
		for _, stmt := range splitStatements(buf.String()) {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			result, err := exec.Execute(stmt)
			if err != nil {
				printStatementError(err)
				continue
			}
			printResult(result, cfg.batch)
		}
		buf.Reset()
	}
	return nil
}

func printStatementError(err error) {
	if e, ok := err.(*relerr.Error); ok {
		fmt.Fprintln(os.Stderr, "ERR", e.Kind, "—", e.Error())
		return
	}
	fmt.Fprintln(os.Stderr, "ERR", err)
}
