package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/deliverydesk/deliverydesk/internal/config"
	"github.com/deliverydesk/deliverydesk/internal/events"
	"github.com/deliverydesk/deliverydesk/internal/export"
)

// sub finds the command at path under parent.
func sub(t *testing.T, parent *cobra.Command, path ...string) *cobra.Command {
	t.Helper()
	cmd, rest, err := parent.Find(path)
	if err != nil || len(rest) != 0 {
		t.Fatalf("find %v: rest %v err %v", path, rest, err)
	}
	return cmd
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "down"},
		{"user", "create"},
		{"report", "export"},
		{"customers", "import"},
	} {
		if cmd := sub(t, root, path...); cmd.RunE == nil {
			t.Errorf("%v has no RunE", path)
		}
	}
}

func TestReportExport_Flags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want map[string]string
	}{
		{"defaults", nil, map[string]string{"format": "pdf", "out": "", "from": "", "territory": ""}},
		{"short out", []string{"-o", "reports/"}, map[string]string{"out": "reports/"}},
		{"all", []string{"--from", "2024-05-01", "--to", "2024-05-31", "--territory", "North", "--format", "xlsx"},
			map[string]string{"from": "2024-05-01", "to": "2024-05-31", "territory": "North", "format": "xlsx"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd := sub(t, reportCmd(), "export")
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("parse flags: %v", err)
			}
			for flag, want := range tt.want {
				got, err := cmd.Flags().GetString(flag)
				if err != nil {
					t.Fatalf("get %s: %v", flag, err)
				}
				if got != want {
					t.Errorf("--%s = %q, want %q", flag, got, want)
				}
			}
		})
	}
}

func TestReportExport_RejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	cmd := sub(t, reportCmd(), "export")
	if err := cmd.ParseFlags([]string{"--format", "docx"}); err != nil {
		t.Fatal(err)
	}
	if err := cmd.RunE(cmd, nil); !errors.Is(err, export.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestReportPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	existing := filepath.Join(dir, "old.pdf")
	if err := os.WriteFile(existing, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	const name = "sales_report_2024-05-01_2024-05-31.pdf"

	tests := []struct {
		name string
		out  string
		want string
	}{
		{"empty uses default name", "", name},
		{"directory gets default name", dir, filepath.Join(dir, name)},
		{"new file kept", filepath.Join(dir, "may.pdf"), filepath.Join(dir, "may.pdf")},
		{"existing file overwritten", existing, existing},
		{"missing directory is a file path", filepath.Join(dir, "nope", "may.pdf"), filepath.Join(dir, "nope", "may.pdf")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := reportPath(tt.out, name); got != tt.want {
				t.Errorf("reportPath(%q) = %q, want %q", tt.out, got, tt.want)
			}
		})
	}
}

func TestMigrateDown_Steps(t *testing.T) {
	t.Parallel()

	cmd := sub(t, migrateCmd(), "down")
	if got, _ := cmd.Flags().GetInt("steps"); got != 1 {
		t.Errorf("default steps = %d, want 1", got)
	}
	if err := cmd.ParseFlags([]string{"--steps", "0"}); err != nil {
		t.Fatal(err)
	}
	if err := cmd.RunE(cmd, nil); err == nil {
		t.Error("expected error for --steps 0")
	}
	if err := cmd.ParseFlags([]string{"--steps", "two"}); err == nil {
		t.Error("expected parse error for non-numeric steps")
	}
}

func TestUserCreate_RequiredFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"all set", []string{"--username", "ops", "--email", "ops@example.com", "--password", "s3cret-pass"}, false},
		{"missing password", []string{"--username", "ops", "--email", "ops@example.com"}, true},
		{"none", nil, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd := sub(t, userCmd(), "create")
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			if err := cmd.ValidateRequiredFlags(); (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRun_ClosesAppWhenCommandFails(t *testing.T) {
	errBoom := errors.New("boom")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	root := &cobra.Command{
		Use:           "deskctl",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			current = &app{
				cfg:     &config.Config{ShutdownTimeout: time.Second},
				logger:  logger,
				emitter: events.NewEmitter(logger, nil),
			}
			return nil
		},
	}
	root.AddCommand(&cobra.Command{
		Use:  "fail",
		RunE: func(cmd *cobra.Command, args []string) error { return errBoom },
	})
	root.SetArgs([]string{"fail"})
	root.SetOut(io.Discard)

	err := run(context.Background(), root)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if current != nil {
		t.Error("app was not closed after a failing command")
	}
}
