package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/myuser/widetable"
	"github.com/myuser/widetable/internal/metrics"
	"github.com/myuser/widetable/internal/sql"
)

type cli struct {
	Schema      string   `short:"s" type:"existingfile" help:"JSON file mapping table names to their column families."`
	Exec        []string `short:"e" help:"Statement to execute. May be repeated. Statements are read from stdin when absent."`
	TablePrefix string   `name:"table-prefix" help:"Prefix applied to every table name."`
	MetricsAddr string   `name:"metrics-addr" help:"Serve /metrics on this address."`
}

type config struct {
	stdin          io.Reader
	stdout, stderr io.Writer
	exit           func(int)
}

func main() {
	rc := run(os.Args[1:], config{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		exit:   os.Exit,
	})
	os.Exit(rc)
}

// run parses args and executes every statement, printing one JSON result
// per line. It returns 1 if any statement failed.
func run(args []string, cfg config) int {
	var c cli
	parser, err := kong.New(&c,
		kong.Name("widetable-shell"),
		kong.Description("Run SQL statements against in-process wide-column tables."),
		kong.Exit(cfg.exit),
		kong.Writers(cfg.stdout, cfg.stderr),
	)
	if err != nil {
		fmt.Fprintln(cfg.stderr, err)
		return 2
	}
	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintln(cfg.stderr, err)
		return 2
	}

	logger := log.New(cfg.stderr, "", log.LstdFlags)
	conn := widetable.NewConnection(widetable.Config{
		TablePrefix: c.TablePrefix,
		Logger:      logger,
	})
	if c.Schema != "" {
		if err := loadSchema(conn, c.Schema); err != nil {
			fmt.Fprintf(cfg.stderr, "loading schema: %v\n", err)
			return 1
		}
	}

	if c.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", metrics.Handler)
		go func() {
			logger.Printf("Serving metrics on %s", c.MetricsAddr)
			if err := http.ListenAndServe(c.MetricsAddr, mux); err != nil {
				logger.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	out := json.NewEncoder(cfg.stdout)
	rc := 0
	exec := func(stmt string) {
		res, err := sql.Run(conn, stmt)
		if err != nil {
			out.Encode(map[string]string{"error": err.Error()})
			rc = 1
			return
		}
		out.Encode(res)
	}

	if len(c.Exec) > 0 {
		for _, stmt := range c.Exec {
			exec(stmt)
		}
		return rc
	}

	scanner := bufio.NewScanner(cfg.stdin)
	for scanner.Scan() {
		stmt := strings.TrimSpace(scanner.Text())
		stmt = strings.TrimSuffix(stmt, ";")
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}
		exec(stmt)
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(cfg.stderr, "reading stdin: %v\n", err)
		return 1
	}
	return rc
}

// loadSchema creates the tables of a file shaped like
// {"table": {"family": {"max_versions": 5}}}.
func loadSchema(conn *widetable.Connection, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var tables map[string]map[string]widetable.FamilyOverrides
	if err := json.Unmarshal(data, &tables); err != nil {
		return err
	}
	for name, families := range tables {
		if err := conn.CreateTable(name, families); err != nil {
			return err
		}
	}
	return nil
}
