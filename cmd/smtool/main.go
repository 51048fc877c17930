package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/opentoys/smcrypto/crypto/gmsm"
	"github.com/opentoys/smcrypto/logx"
	"github.com/opentoys/smcrypto/runtimes"
)

// main
// smtool keygen -out {dir} [-password {pwd}]
// smtool sign -key {pem} -in {file} [-uid {uid}] [-mode asn1|rs]
// smtool verify -pub {pem} -in {file,...} -sig {hex,...} [-uid {uid}] [-mode asn1|rs]
// smtool encrypt -pub {pem} -in {file} [-mode asn1|c1c3c2]
// smtool decrypt -key {pem} -in {hex file} [-password {pwd}]
// smtool convert -in {hex file} -mode asn1|c1c3c2
//
// Every flag can also be given as SMTOOL_{FLAG}; flags win.
func main() {
	os.Exit(run(os.Args[1:], os.Environ(), os.Stdin, os.Stdout, os.Stderr))
}

type config struct {
	Cmd      string `json:"cmd"`
	Key      string `json:"key"`
	Pub      string `json:"pub"`
	In       string `json:"in"`
	Out      string `json:"out"`
	Sig      string `json:"sig"`
	UID      string `json:"uid"`
	Mode     string `json:"mode"`
	Password string `json:"password"`
	Force    string `json:"force"`
	Workers  string `json:"workers"`
	Log      struct {
		Level  string `json:"level"`
		Source string `json:"source"`
	} `json:"log"`
}

func (c *config) workers() int {
	n, e := strconv.Atoi(c.Workers)
	if e != nil || n < 1 {
		return 4
	}
	return n
}

func (c *config) level() slog.Level {
	var l slog.Level
	if e := l.UnmarshalText([]byte(c.Log.Level)); e != nil {
		return slog.LevelInfo
	}
	return l
}

func loadConfig(args, env []string) (cfg config, e error) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = append([]string{"-cmd"}, args...)
	}
	data := runtimes.Merge(runtimes.ParseEnvs(env, "SMTOOL"), runtimes.ParseArgs(args))
	// "-log debug" is shorthand for "-log-level debug"
	if v, ok := runtimes.Lookup(data, "log"); ok {
		data = runtimes.Merge(data, map[string]interface{}{"log": map[string]interface{}{"level": v}})
	}
	if m, ok := data["log"].(map[string]interface{}); ok {
		delete(m, "")
	}
	if e = runtimes.JSON.Copy(&cfg, data); e != nil {
		return cfg, fmt.Errorf("smtool: invalid arguments, %v", e)
	}
	return
}

type app struct {
	cfg    config
	stdin  io.Reader
	stdout io.Writer
	logger *slog.Logger
}

func run(args, env []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, e := loadConfig(args, env)
	logger := logx.NewLogger(stderr, logx.WithLevel(cfg.level()), logx.WithAddSource(cfg.Log.Source == "true"))
	if e != nil {
		logger.Error("load config", "error", e)
		return 2
	}
	if cfg.level() <= slog.LevelDebug {
		gmsm.SetLogger(logger.With("module", "gmsm"))
		defer gmsm.SetLogger(nil)
	}

	a := &app{cfg: cfg, stdin: stdin, stdout: stdout, logger: logger.With("cmd", cfg.Cmd)}
	commands := map[string]func() error{
		"keygen":  a.keygen,
		"sign":    a.sign,
		"verify":  a.verify,
		"encrypt": a.encrypt,
		"decrypt": a.decrypt,
		"convert": a.convert,
	}
	fn, ok := commands[cfg.Cmd]
	if !ok {
		logger.Error("unknown command", "cmd", cfg.Cmd)
		return 2
	}
	if e = fn(); e != nil {
		a.logger.Error("failed", "error", fmt.Sprintf("%+v", e))
		return 1
	}
	a.logger.Debug("done")
	return 0
}
