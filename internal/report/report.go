// Package report builds the plain-text diagnostic block that heads every
// forwarded message. It only ever contains invocation and host data, never
// content taken from the forwarded message.
package report

import (
	"fmt"
	"io/fs"
	"strings"

	"github.com/shineum/forward-as-attachment-mta/internal/email"
)

// lax is the set of permission bits that grant access beyond the owner.
const lax fs.FileMode = 0o077

// Environment describes the process and host the binary runs on.
type Environment struct {
	UID, GID   int
	EUID, EGID int

	Username          string
	Groupname         string
	EffectiveUsername string
	EffectiveGroup    string

	Hostname   string
	DeviceName string
	Distro     string
	Platform   string
}

// Report is the input of Build.
type Report struct {
	// Hostname names the host in the opening sentence.
	Hostname string
	Args     email.Args

	// ConfigMode is the mode of the configuration file. ConfigModeErr is set
	// when it could not be determined.
	ConfigMode    fs.FileMode
	ConfigModeErr error

	Env Environment
}

// Build renders the report. The output only depends on r.
func Build(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A process on host %q invoked the sendmail binary.\n", r.Hostname)
	b.WriteString("On that host, the sendmail binary is provided by the forward-as-attachment-mta package.\n")

	switch {
	case r.ConfigModeErr != nil:
		fmt.Fprintf(&b, "WARNING: could not determine permissions of the config file, they may or may not be too lax: %v\n", r.ConfigModeErr)
	case r.ConfigMode.Perm()&lax != 0:
		fmt.Fprintf(&b, "WARNING: the config file contains SMTP credentials and has too-lax permissions: %s\n", r.ConfigMode.Perm())
	}

	b.WriteString("The original message is attached inline to this wrapper message.\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "Invocation args: %s\n", r.Args)
	b.WriteString("\n")

	e := r.Env
	fmt.Fprintf(&b, "uid:%d gid:%d euid:%d egid:%d\n", e.UID, e.GID, e.EUID, e.EGID)
	fmt.Fprintf(&b, "username: %s\n", e.Username)
	fmt.Fprintf(&b, "groupname: %s\n", e.Groupname)
	fmt.Fprintf(&b, "effective username: %s\n", e.EffectiveUsername)
	fmt.Fprintf(&b, "effective groupname: %s\n", e.EffectiveGroup)
	b.WriteString("\n")

	fmt.Fprintf(&b, "hostname: %s\n", e.Hostname)
	fmt.Fprintf(&b, "device name: %s\n", e.DeviceName)
	fmt.Fprintf(&b, "distro: %s\n", e.Distro)
	fmt.Fprintf(&b, "platform: %s\n", e.Platform)
	b.WriteString("\n")

	return b.String()
}
