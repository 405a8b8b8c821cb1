// Package edge holds the reverse-proxy reload hook. Deploy operations never
// trigger a reload; the hook exists for operators whose edge server maps
// routes from on-disk state and want a reload at process start. Everyone else
// gets Nop.
package edge

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

const DefaultConfigPath = "/etc/caddy/Caddyfile"

// Reloader asks the fronting edge server to pick up its configuration again.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Caddy reloads a Caddy server by shelling out to the caddy binary.
// Zero value uses "caddy" from PATH and DefaultConfigPath.
type Caddy struct {
	Bin        string
	ConfigPath string
}

func (c *Caddy) Reload(ctx context.Context) error {
	bin := c.Bin
	if bin == "" {
		bin = "caddy"
	}
	cfg := c.ConfigPath
	if cfg == "" {
		cfg = DefaultConfigPath
	}
	out, err := exec.CommandContext(ctx, bin, "reload", "--config", cfg).CombinedOutput()
	if err != nil {
		return fmt.Errorf("caddy reload: %w: %s", err, bytes.TrimSpace(out))
	}
	return nil
}

// Nop is the default reloader: it does nothing.
type Nop struct{}

func (Nop) Reload(context.Context) error { return nil }
