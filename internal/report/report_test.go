package report

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"gopkg.in/ini.v1"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
)

func sampleReport() Report {
	return Report{
		Hostname:   "backup01",
		Args:       email.NewArgs([]string{"/usr/sbin/sendmail", "-FCronDaemon", "-i", "-B8BITMIME", "-oem", "root"}),
		ConfigMode: 0o600,
		Env: Environment{
			UID: 0, GID: 0, EUID: 0, EGID: 0,
			Username:          "root",
			Groupname:         "root",
			EffectiveUsername: "root",
			EffectiveGroup:    "root",
			Hostname:          "backup01",
			DeviceName:        "Backup Box",
			Distro:            "Debian GNU/Linux 12 (bookworm)",
			Platform:          "Linux",
		},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	got := Build(sampleReport())
	want := strings.Join([]string{
		`A process on host "backup01" invoked the sendmail binary.`,
		"On that host, the sendmail binary is provided by the forward-as-attachment-mta package.",
		"The original message is attached inline to this wrapper message.",
		"",
		`Invocation args: ["/usr/sbin/sendmail", "-FCronDaemon", "-i", "-B8BITMIME", "-oem", "root"]`,
		"",
		"uid:0 gid:0 euid:0 egid:0",
		"username: root",
		"groupname: root",
		"effective username: root",
		"effective groupname: root",
		"",
		"hostname: backup01",
		"device name: Backup Box",
		"distro: Debian GNU/Linux 12 (bookworm)",
		"platform: Linux",
		"",
		"",
	}, "\n")

	if got != want {
		t.Errorf("Build mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuild_ConfigPermissions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mode     fs.FileMode
		err      error
		wantWarn string
	}{
		{"owner only", 0o600, nil, ""},
		{"owner read only", 0o400, nil, ""},
		{"group readable", 0o640, nil, "too-lax permissions: -rw-r-----"},
		{"world readable", 0o644, nil, "too-lax permissions: -rw-r--r--"},
		{"other execute", 0o601, nil, "too-lax permissions: -rw------x"},
		{"stat failed", 0, errors.New("permission denied"), "could not determine permissions of the config file, they may or may not be too lax: permission denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := sampleReport()
			r.ConfigMode = tt.mode
			r.ConfigModeErr = tt.err

			got := Build(r)
			hasWarning := strings.Contains(got, "WARNING:")
			if tt.wantWarn == "" {
				if hasWarning {
					t.Errorf("unexpected warning in report:\n%s", got)
				}
				return
			}
			if !strings.Contains(got, "WARNING: ") || !strings.Contains(got, tt.wantWarn) {
				t.Errorf("report missing warning %q:\n%s", tt.wantWarn, got)
			}
		})
	}
}

func TestBuild_LossyArgs(t *testing.T) {
	t.Parallel()

	r := sampleReport()
	r.Args = email.NewArgs([]string{"sendmail", "bad\xffarg"})

	got := Build(r)
	if !strings.Contains(got, `Invocation args: (non-utf-8) ["sendmail", "bad�arg"]`) {
		t.Errorf("report does not mark lossy args:\n%s", got)
	}
}

func TestBuild_BlankUnresolvedNames(t *testing.T) {
	t.Parallel()

	r := sampleReport()
	r.Env.Username = ""
	r.Env.EffectiveGroup = ""

	got := Build(r)
	if !strings.Contains(got, "\nusername: \n") {
		t.Errorf("expected blank username line:\n%s", got)
	}
	if !strings.Contains(got, "\neffective groupname: \n") {
		t.Errorf("expected blank effective groupname line:\n%s", got)
	}
}

func TestLookupKeys(t *testing.T) {
	t.Parallel()

	data := []byte(strings.Join([]string{
		`PRETTY_NAME="Debian GNU/Linux 12 (bookworm)"`,
		`NAME="Debian GNU/Linux"`,
		`VERSION_ID="12"`,
		`HOME_URL="https://www.debian.org/"`,
	}, "\n"))

	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := lookupKeys(f, "PRETTY_NAME", "NAME"); got != "Debian GNU/Linux 12 (bookworm)" {
		t.Errorf("PRETTY_NAME: got %q", got)
	}
	if got := lookupKeys(f, "MISSING", "NAME"); got != "Debian GNU/Linux" {
		t.Errorf("NAME fallback: got %q", got)
	}
	if got := lookupKeys(f, "MISSING"); got != "" {
		t.Errorf("missing key: got %q, want empty", got)
	}
}

func TestPlatformName(t *testing.T) {
	t.Parallel()

	if got := platformName("linux"); got != "Linux" {
		t.Errorf("linux: got %q", got)
	}
	if got := platformName("plan9"); got != "plan9" {
		t.Errorf("unknown platform: got %q", got)
	}
}

func TestCollect(t *testing.T) {
	t.Parallel()

	env := Collect()
	if env.Platform == "" {
		t.Error("Platform should never be empty")
	}
	if env.Distro == "" {
		t.Error("Distro should fall back to a placeholder")
	}
}
