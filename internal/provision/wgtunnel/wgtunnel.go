// Package wgtunnel issues credentials through the local tunnel daemon.
// Key material comes from the daemon's own binaries; this package only
// allocates addresses, registers peers and renders client configs.
package wgtunnel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"plaza-bot/internal/faults"
	"plaza-bot/internal/models"
	"plaza-bot/internal/provision"
)

// Commander runs one daemon command and returns its stdout. The
// real implementation shells out; tests substitute a fake.
type Commander interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (string, error)
}

type execCommander struct{}

func (execCommander) Run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.Output()
	return strings.TrimSpace(string(out)), err
}

type Config struct {
	Interface      string
	ServerPubKey   string
	ServerEndpoint string
	ConfigDir      string
	SubnetPrefix   string // e.g. "10.66.66."
}

type Backend struct {
	cfg Config
	cmd Commander
}

func New(cfg Config) *Backend {
	return &Backend{cfg: cfg, cmd: execCommander{}}
}

// NewWithCommander is the test constructor.
func NewWithCommander(cfg Config, cmd Commander) *Backend {
	return &Backend{cfg: cfg, cmd: cmd}
}

func (b *Backend) handleFor(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

func (b *Backend) configPath(handle string) string {
	return filepath.Join(b.cfg.ConfigDir, fmt.Sprintf("%s-client-%s.conf", b.cfg.Interface, handle))
}

// Issue allocates the lowest free address in the pool, registers the
// peer and persists the rendered config under the user's handle. A
// previously rendered config is returned as-is, so repeated calls for
// the same user stay idempotent. Duration is ignored here: the tunnel
// daemon has no expiry of its own, the ledger owns the dates.
func (b *Backend) Issue(ctx context.Context, userID int64, pref models.Preference, durationDays int) (provision.Credential, error) {
	handle := b.handleFor(userID)
	path := b.configPath(handle)

	if existing, err := os.ReadFile(path); err == nil {
		return provision.Credential{Payload: string(existing), Handle: handle}, nil
	}

	used, err := b.usedSuffixes(ctx)
	if err != nil {
		return provision.Credential{}, err
	}

	suffix := 2
	for used[suffix] {
		suffix++
	}
	clientIP := fmt.Sprintf("%s%d", b.cfg.SubnetPrefix, suffix)

	privateKey, err := b.cmd.Run(ctx, "", "wg", "genkey")
	if err != nil {
		return provision.Credential{}, wrapDaemonErr("genkey", err)
	}
	publicKey, err := b.cmd.Run(ctx, privateKey, "wg", "pubkey")
	if err != nil {
		return provision.Credential{}, wrapDaemonErr("pubkey", err)
	}
	presharedKey, err := b.cmd.Run(ctx, "", "wg", "genpsk")
	if err != nil {
		return provision.Credential{}, wrapDaemonErr("genpsk", err)
	}

	// The add-peer call is the serialization point for the pool. If it
	// fails and a re-scan shows our suffix already taken, a concurrent
	// caller won the race and the issue is retriable.
	_, err = b.cmd.Run(ctx, presharedKey, "wg", "set", b.cfg.Interface,
		"peer", publicKey,
		"preshared-key", "/dev/stdin",
		"allowed-ips", clientIP+"/32")
	if err != nil {
		if now, scanErr := b.usedSuffixes(ctx); scanErr == nil && now[suffix] {
			return provision.Credential{}, faults.Conflictf("address %s taken by concurrent allocation", clientIP)
		}
		return provision.Credential{}, wrapDaemonErr("add peer", err)
	}

	if _, err := b.cmd.Run(ctx, "", "wg-quick", "save", b.cfg.Interface); err != nil {
		log.Printf("Failed to save %s runtime config: %v", b.cfg.Interface, err)
	}

	config := b.renderConfig(privateKey, presharedKey, clientIP)

	if err := os.WriteFile(path, []byte(config), 0600); err != nil {
		return provision.Credential{}, fmt.Errorf("failed to persist client config: %w", err)
	}

	log.Printf("Issued tunnel credential %s with address %s", handle, clientIP)
	return provision.Credential{Payload: config, Handle: handle}, nil
}

// Cleanup removes the peer from the daemon and deletes the persisted
// config, releasing the pool address for reuse. The peer is addressed
// through the public key derived from the stored config's private key.
func (b *Backend) Cleanup(ctx context.Context, handle string) error {
	path := b.configPath(handle)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read client config: %w", err)
	}

	if privateKey := configPrivateKey(string(data)); privateKey != "" {
		publicKey, err := b.cmd.Run(ctx, privateKey, "wg", "pubkey")
		if err != nil {
			log.Printf("Failed to derive public key for %s: %v", handle, err)
		} else if _, err := b.cmd.Run(ctx, "", "wg", "set", b.cfg.Interface, "peer", publicKey, "remove"); err != nil {
			log.Printf("Failed to remove peer %s: %v", handle, err)
		} else if _, err := b.cmd.Run(ctx, "", "wg-quick", "save", b.cfg.Interface); err != nil {
			log.Printf("Failed to save %s runtime config: %v", b.cfg.Interface, err)
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove client config: %w", err)
	}
	return nil
}

func configPrivateKey(config string) string {
	for _, line := range strings.Split(config, "\n") {
		if key, ok := strings.CutPrefix(strings.TrimSpace(line), "PrivateKey = "); ok {
			return strings.TrimSpace(key)
		}
	}
	return ""
}

var suffixRe = regexp.MustCompile(`\.(\d+)/32`)

func (b *Backend) usedSuffixes(ctx context.Context) (map[int]bool, error) {
	out, err := b.cmd.Run(ctx, "", "wg", "show", b.cfg.Interface, "allowed-ips")
	if err != nil {
		return nil, wrapDaemonErr("list peers", err)
	}

	used := make(map[int]bool)
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, b.cfg.SubnetPrefix) {
			continue
		}
		if m := suffixRe.FindStringSubmatch(line); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				used[n] = true
			}
		}
	}
	return used, nil
}

func (b *Backend) renderConfig(privateKey, presharedKey, clientIP string) string {
	return fmt.Sprintf(`[Interface]
PrivateKey = %s
Address = %s/32
DNS = 1.1.1.1, 1.0.0.1
PostUp = ip -6 route add blackhole default metric 1

[Peer]
PublicKey = %s
PresharedKey = %s
Endpoint = %s
AllowedIPs = 0.0.0.0/0
PersistentKeepalive = 25
`, privateKey, clientIP, b.cfg.ServerPubKey, presharedKey, b.cfg.ServerEndpoint)
}

func wrapDaemonErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return faults.Unavailablef("tunnel daemon %s timed out", op)
	}
	return faults.Unavailablef("tunnel daemon %s failed: %v", op, err)
}
