// Package cli provides the command-line entry point for the flinchd
// engine process: configuration loading, root-user bootstrap, and a
// line-oriented FLQL front end read from stdin. There is no HTTP
// surface — every statement is a line of FLQL terminated by `;`.
package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"flinch/common"
	"flinch/config"
	"flinch/schema"
)

// cfgFile holds the path to flinch.toml specified via --config; empty
// means "flinch.toml in the working directory".
var cfgFile string

// sessionID is the session established against the magic database at
// startup, used for every statement read from stdin until a `login`
// pseudo-statement changes it.
var sessionID string

// RootCmd is the flinchd entry point.
var RootCmd = &cobra.Command{
	Use:   "flinchd",
	Short: "an embedded multi-tenant document database with an FLQL front end",
	Long: `flinchd

Loads flinch.toml (auto-created with defaults on first run), boots every
persisted database and collection, logs in as the configured root user,
and then reads FLQL statements from stdin, one per line, each terminated
by a semicolon. Results are printed as JSON.`,
	RunE: runServer,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to flinch.toml (default ./flinch.toml)")
	RootCmd.PersistentFlags().String("dir.data", "", "override dir.data from flinch.toml")
	RootCmd.PersistentFlags().String("dir.log", "", "override dir.log from flinch.toml")

	viper.BindPFlag("dir.data", RootCmd.PersistentFlags().Lookup("dir.data"))
	viper.BindPFlag("dir.log", RootCmd.PersistentFlags().Lookup("dir.log"))
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.FileName
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("cli: load config: %w", err)
	}
	if v := viper.GetString("dir.data"); v != "" {
		cfg.Dir.Data = v
	}
	if v := viper.GetString("dir.log"); v != "" {
		cfg.Dir.Log = v
	}

	if cfg.Enable.Log {
		splitter := common.Init(cfg.Dir.Log)
		defer splitter.Close()
	}

	if err := os.MkdirAll(cfg.Dir.Data, 0755); err != nil {
		return fmt.Errorf("cli: create data dir: %w", err)
	}

	s, err := schema.Open(cfg.Dir.Data, cfg.Login.Username, cfg.Login.Password)
	if err != nil {
		return fmt.Errorf("cli: open engine: %w", err)
	}
	defer s.Close()

	sid, err := s.Login(cfg.Login.Username, cfg.Login.Password, schema.MagicDB)
	if err != nil {
		return fmt.Errorf("cli: root login: %w", err)
	}
	sessionID = sid

	common.Logger.WithFields(map[string]interface{}{
		"data_dir": filepath.Clean(cfg.Dir.Data),
		"username": cfg.Login.Username,
		"password": common.MaskSecret(cfg.Login.Password),
	}).Info("flinchd ready")

	return repl(s, cmd.InOrStdin(), cmd.OutOrStdout())
}

// repl reads newline-terminated FLQL statements from in and writes one
// JSON-encoded result per line to out, until in is exhausted.
func repl(s *schema.Schemas, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "login ") {
			if id, err := handleLogin(s, line); err != nil {
				fmt.Fprintf(out, `{"error":%q}`+"\n", err.Error())
			} else {
				sessionID = id
				fmt.Fprintln(out, `{"ok":true}`)
			}
			continue
		}

		res := s.FLQL(line, sessionID)
		b, err := json.Marshal(res)
		if err != nil {
			fmt.Fprintf(out, `{"error":%q}`+"\n", err.Error())
			continue
		}
		out.Write(b)
		fmt.Fprintln(out)
	}
	return scanner.Err()
}

// handleLogin parses `login <db> <username> <password>` and returns the
// resulting session id.
func handleLogin(s *schema.Schemas, line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) != 4 {
		return "", fmt.Errorf("usage: login <db> <username> <password>")
	}
	return s.Login(parts[2], parts[3], parts[1])
}
