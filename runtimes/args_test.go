package runtimes_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/opentoys/smcrypto/runtimes"
)

func TestParseEnvs(t *testing.T) {
	envs := []string{
		"SMTOOL_KEY=key.pem",
		"SMTOOL_KEY_PASSWORD=a=b",
		"SMTOOL_MODE=rs",
		"HOME=/root",
		"SMTOOL",
	}
	data := runtimes.ParseEnvs(envs, "SMTOOL")
	fmt.Println(data)

	if v, _ := runtimes.Lookup(data, "key"); v != "key.pem" {
		t.Fatal(data)
	}
	if v, _ := runtimes.Lookup(data, "key-password"); v != "a=b" {
		t.Fatal(data)
	}
	if _, ok := runtimes.Lookup(data, "home"); ok {
		t.Fatal("unprefixed variable kept")
	}
}

func TestParseArgs(t *testing.T) {
	args := []string{"-cmd", "sign", "--key=priv.pem", "-uid", "alice", "-key-password", "pw", "-verbose"}
	data := runtimes.ParseArgs(args)
	fmt.Println(data)

	for k, want := range map[string]string{
		"cmd":          "sign",
		"key":          "priv.pem",
		"key-password": "pw",
		"uid":          "alice",
		"verbose":      "true",
	} {
		if v, _ := runtimes.Lookup(data, k); v != want {
			t.Fatalf("%s = %q, want %q", k, v, want)
		}
	}
}

func TestMerge(t *testing.T) {
	env := runtimes.ParseEnvs([]string{"SMTOOL_MODE=asn1", "SMTOOL_UID=bob", "SMTOOL_KEY_PASSWORD=x"}, "smtool")
	args := runtimes.ParseArgs([]string{"-mode", "rs", "-key", "k.pem"})
	data := runtimes.Merge(env, args)

	var cfg struct {
		Mode string `json:"mode"`
		UID  string `json:"uid"`
	}
	if e := runtimes.JSON.Copy(&cfg, data); e != nil {
		t.Fatal(e)
	}
	if cfg.Mode != "rs" || cfg.UID != "bob" {
		t.Fatal(cfg)
	}
	if v, _ := runtimes.Lookup(data, "key"); v != "k.pem" {
		t.Fatal(data)
	}
	if v, _ := runtimes.Lookup(data, "key-password"); v != "x" {
		t.Fatal(data)
	}
}

func TestFileJoin(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "key.pem")
	if e := os.WriteFile(file, nil, 0o600); e != nil {
		t.Fatal(e)
	}
	if runtimes.FileJoin(file, "pub.pem") != filepath.Join(dir, "pub.pem") {
		t.Fatal(runtimes.FileJoin(file, "pub.pem"))
	}
	if runtimes.FileJoin(dir, "/abs.pem") != "/abs.pem" {
		t.Fatal("absolute path rewritten")
	}
	if !runtimes.Exist(file) || runtimes.Exist(filepath.Join(dir, "missing")) {
		t.Fatal("Exist")
	}
}
