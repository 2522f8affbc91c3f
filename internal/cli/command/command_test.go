package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/datalayer-go/internal/config"
	"github.com/yndnr/datalayer-go/internal/core/domain"
)

// cliRunner runs the application against one sqlite file.
type cliRunner struct {
	t      *testing.T
	dbPath string
}

func newRunner(t *testing.T) *cliRunner {
	return &cliRunner{t: t, dbPath: filepath.Join(t.TempDir(), "dl.db")}
}

func (r *cliRunner) run(stdin string, args ...string) (string, error) {
	r.t.Helper()
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	full := append([]string{AppName, "--set", "storage.sqlite.path=" + r.dbPath}, args...)
	err := app.Run(full)
	return out.String(), err
}

func (r *cliRunner) mustRun(args ...string) string {
	r.t.Helper()
	out, err := r.run("", args...)
	if err != nil {
		r.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func (r *cliRunner) keys() []string {
	r.t.Helper()
	var keys []string
	if err := json.Unmarshal([]byte(r.mustRun("-o", "json", "keys")), &keys); err != nil {
		r.t.Fatal(err)
	}
	return keys
}

func TestApp_Commands(t *testing.T) {
	app := App()
	if app.Name != AppName {
		t.Errorf("Name = %q", app.Name)
	}
	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, want := range []string{"get", "set", "delete", "keys", "count", "dump", "clear", "purge", "new-session", "info", "config", "backup", "run", "shell"} {
		if !names[want] {
			t.Errorf("missing command %q", want)
		}
	}
}

func TestSetGet(t *testing.T) {
	r := newRunner(t)
	r.mustRun("set", "--type", "INT", "--expiry", "forever", "n", "42")

	var view map[string]any
	if err := json.Unmarshal([]byte(r.mustRun("-o", "json", "get", "n")), &view); err != nil {
		t.Fatal(err)
	}
	if view["value"] != float64(42) || view["type"] != "INT" || view["expiry"] != "FOREVER" {
		t.Errorf("view = %v", view)
	}

	if _, err := r.run("", "get", "absent"); err == nil {
		t.Error("get absent key succeeded")
	}
}

func TestSet_InvalidValue(t *testing.T) {
	r := newRunner(t)
	if _, err := r.run("", "set", "--type", "INT", "n", "forty"); !domain.IsDomainError(err, domain.ErrInvalidArgument.Code) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	if _, err := r.run("", "set", "only-key"); err == nil {
		t.Error("set with one arg succeeded")
	}
}

func TestKeysCountDelete(t *testing.T) {
	r := newRunner(t)
	r.mustRun("set", "b", "2")
	r.mustRun("set", "a", "1")

	if got := r.keys(); strings.Join(got, ",") != "a,b" {
		t.Errorf("keys = %v", got)
	}
	if got := strings.TrimSpace(r.mustRun("count")); got != "2" {
		t.Errorf("count = %q", got)
	}
	r.mustRun("delete", "a", "missing")
	if got := r.keys(); strings.Join(got, ",") != "b" {
		t.Errorf("keys after delete = %v", got)
	}
}

func TestNewSession(t *testing.T) {
	r := newRunner(t)
	r.mustRun("set", "session_flag", "1")
	r.mustRun("set", "--expiry", "forever", "sticky", "1")
	r.mustRun("set", "--expiry", "1h", "later", "1")

	var res map[string]any
	if err := json.Unmarshal([]byte(r.mustRun("-o", "json", "new-session", "--id", "7")), &res); err != nil {
		t.Fatal(err)
	}
	if res["removed"] != float64(1) || res["session_id"] != float64(7) {
		t.Errorf("result = %v", res)
	}
	if got := r.keys(); strings.Join(got, ",") != "later,sticky" {
		t.Errorf("keys = %v", got)
	}
}

func TestDumpAndPurge(t *testing.T) {
	r := newRunner(t)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	r.mustRun("set", "--expiry", past, "stale", "x")
	r.mustRun("set", "fresh", "y")

	if got := r.keys(); strings.Join(got, ",") != "fresh" {
		t.Errorf("keys = %v", got)
	}

	var dump []map[string]any
	if err := json.Unmarshal([]byte(r.mustRun("-o", "json", "dump")), &dump); err != nil {
		t.Fatal(err)
	}
	if len(dump) != 2 || dump[1]["key"] != "stale" || dump[1]["expired"] != true {
		t.Errorf("dump = %v", dump)
	}

	var res map[string]any
	if err := json.Unmarshal([]byte(r.mustRun("-o", "json", "purge")), &res); err != nil {
		t.Fatal(err)
	}
	if res["removed"] != float64(1) {
		t.Errorf("purge = %v", res)
	}
	if err := json.Unmarshal([]byte(r.mustRun("-o", "json", "dump")), &dump); err != nil || len(dump) != 1 {
		t.Errorf("dump after purge = %v (%v)", dump, err)
	}
}

func TestClear(t *testing.T) {
	r := newRunner(t)
	r.mustRun("set", "a", "1")
	if _, err := r.run("", "clear"); !domain.IsDomainError(err, domain.ErrMissingArgument.Code) {
		t.Errorf("clear without --force = %v", err)
	}
	r.mustRun("clear", "--force")
	if got := r.keys(); len(got) != 0 {
		t.Errorf("keys = %v", got)
	}
}

func TestTableFlag(t *testing.T) {
	r := newRunner(t)
	r.mustRun("-t", "google_adid", "set", "adid", "38400000-8cf0-11bd-b23e-10b96e40000d")
	if got := r.keys(); len(got) != 0 {
		t.Errorf("default table keys = %v", got)
	}
	if got := strings.TrimSpace(r.mustRun("--table", "google_adid", "count")); got != "1" {
		t.Errorf("google_adid count = %q", got)
	}
	if _, err := r.run("", "-t", "bad-name", "keys"); !domain.IsDomainError(err, domain.ErrInvalidTableName.Code) {
		t.Errorf("bad table name = %v", err)
	}
}

func TestBadOverride(t *testing.T) {
	r := newRunner(t)
	if _, err := r.run("", "--set", "novalue", "keys"); err == nil {
		t.Error("--set without '=' accepted")
	}
	if _, err := r.run("", "--driver", "floppy", "keys"); err == nil {
		t.Error("unknown driver accepted")
	}
}

func TestShell(t *testing.T) {
	r := newRunner(t)
	hist := filepath.Join(t.TempDir(), "history")
	out, err := r.run("set k v\n-o json get k\nget missing\nexit\n", "shell", "--history", hist)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"key": "k"`) {
		t.Errorf("shell output missing record: %q", out)
	}
	if !strings.Contains(out, "Error: key \"missing\" not found") {
		t.Errorf("shell output missing error: %q", out)
	}
	if got := r.keys(); strings.Join(got, ",") != "k" {
		t.Errorf("keys after shell = %v", got)
	}
}

func TestParseRecord(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	tests := []struct {
		name      string
		value     string
		typ       string
		expiry    string
		expirySet bool
		wantValue string
		wantSer   domain.Serialization
		wantErr   bool
	}{
		{"string", "hello", "STRING", "", false, "hello", domain.SerializationString, false},
		{"int array canonical", "[1, 2]", "int_array", "", false, "[1,2]", domain.SerializationIntArray, false},
		{"json object", `{"a": true}`, "JSON_OBJECT", "forever", true, `{"a":true}`, domain.SerializationJSONObject, false},
		{"long", "9000000000", "LONG", "30m", true, "9000000000", domain.SerializationLong, false},
		{"bad bool", "maybe", "BOOLEAN", "", false, "", 0, true},
		{"bad type", "1", "DECIMAL", "", false, "", 0, true},
		{"bad expiry", "1", "STRING", "tomorrow", true, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := parseRecord("k", tt.value, tt.typ, tt.expiry, tt.expirySet, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if rec.Value != tt.wantValue || rec.Serialization != tt.wantSer {
				t.Errorf("rec = %+v", rec)
			}
			if rec.Expiry.IsSet() != tt.expirySet {
				t.Errorf("expiry set = %v, want %v", rec.Expiry.IsSet(), tt.expirySet)
			}
		})
	}
}

func TestServe_SessionTicker(t *testing.T) {
	r := newRunner(t)
	r.mustRun("set", "session_flag", "1")
	r.mustRun("set", "--expiry", "forever", "sticky", "1")

	cfg := config.Default()
	cfg.Storage.SQLite.Path = r.dbPath
	cfg.Session.Interval = 10 * time.Millisecond
	cfg.Purge.Interval = 10 * time.Millisecond
	e := newEnv(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), "", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := serve(ctx, e, nil, time.Second); err != nil {
		t.Fatalf("serve() = %v", err)
	}
	if e.metrics == nil {
		t.Error("metrics registry not created")
	}

	if got := r.keys(); strings.Join(got, ",") != "sticky" {
		t.Errorf("keys after run = %v", got)
	}
}

func TestBackup(t *testing.T) {
	r := newRunner(t)
	dir := filepath.Join(t.TempDir(), "backups")
	backup := func(args ...string) string {
		return r.mustRun(append([]string{"--set", "backup.dir=" + dir, "--set", "backup.passphrase=correct horse", "-o", "json", "backup"}, args...)...)
	}

	r.mustRun("set", "--expiry", "forever", "google_adid", "38400000-8cf0-11bd-b23e-10b96e40000d")
	r.mustRun("set", "session_flag", "true")

	var created []map[string]any
	if err := json.Unmarshal([]byte(backup("create")), &created); err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 || created[0]["record_count"] != float64(2) || created[0]["encrypted"] != true {
		t.Fatalf("create = %v", created)
	}

	r.mustRun("clear", "--force")
	r.mustRun("set", "other", "1")

	var restored map[string]any
	if err := json.Unmarshal([]byte(backup("restore", "--replace")), &restored); err != nil {
		t.Fatal(err)
	}
	if restored["restored"] != float64(2) {
		t.Errorf("restore = %v", restored)
	}
	if got := strings.Join(r.keys(), ","); got != "google_adid,session_flag" {
		t.Errorf("keys after restore = %v", got)
	}

	var listed []map[string]any
	if err := json.Unmarshal([]byte(backup("list")), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0]["id"] != created[0]["id"] {
		t.Errorf("list = %v", listed)
	}

	out := r.mustRun("--set", "backup.dir="+dir, "backup", "list")
	if !strings.Contains(out, "ENCRYPTED") || !strings.Contains(out, "datalayer") {
		t.Errorf("table output = %q", out)
	}

	if _, err := r.run("", "--set", "backup.dir="+dir, "backup", "restore", created[0]["id"].(string)); err == nil {
		t.Error("restore of an encrypted snapshot without a passphrase succeeded")
	}
}
