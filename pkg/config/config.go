// Package config loads neti's ini-style configuration file.
//
// The grammar matches the original Python implementation's ConfigParser
// sections verbatim: [ec2], [vpc], and [neti].
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultPath is the well-known production config location.
	DefaultPath = "/etc/neti/neti.conf"
	// TestingPath is the fallback used when DefaultPath does not exist,
	// intended for local/test runs from the current directory.
	TestingPath = "testing.conf"
)

// Config is a typed view over neti.conf.
type Config struct {
	EC2Realm RealmConfig
	VPCRealm RealmConfig

	ZKPrefix     string
	ZKIPToIDNode string
	ZKIDToIPNode string
	ZKIPMapNode  string

	AWSKey       string
	AWSSecretKey string

	LogFile string

	SSHWhitelist []string
	Open80       bool
	RejectAll    bool
}

// RealmConfig holds the per-realm coordination and subnet settings.
type RealmConfig struct {
	ZKHosts       []string
	OverlaySubnet string
}

// Load resolves the config file path and parses it. If path is empty, it
// tries DefaultPath, then TestingPath, in that order; if neither exists,
// Load returns an error.
func Load(path string) (*Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(resolved)
	v.SetConfigType("ini")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %q: %w", resolved, err)
	}

	cfg := &Config{
		EC2Realm: RealmConfig{
			ZKHosts:       splitCSV(v.GetString("ec2.zk_hosts")),
			OverlaySubnet: v.GetString("ec2.overlay_subnet"),
		},
		VPCRealm: RealmConfig{
			ZKHosts:       splitCSV(v.GetString("vpc.zk_hosts")),
			OverlaySubnet: v.GetString("vpc.overlay_subnet"),
		},
		ZKPrefix:     v.GetString("neti.zk_prefix"),
		ZKIPToIDNode: v.GetString("neti.zk_iptoid_node"),
		ZKIDToIPNode: v.GetString("neti.zk_idtoip_node"),
		ZKIPMapNode:  v.GetString("neti.zk_ip_map_node"),
		AWSKey:       v.GetString("neti.aws_key"),
		AWSSecretKey: v.GetString("neti.aws_secret_key"),
		LogFile:      v.GetString("neti.log_file"),
		SSHWhitelist: splitCSV(v.GetString("neti.ssh_whitelist")),
		Open80:       v.GetBool("neti.open_80"),
		RejectAll:    v.GetBool("neti.reject_all"),
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %q: %w", path, err)
		}
		return path, nil
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath, nil
	}
	if _, err := os.Stat(TestingPath); err == nil {
		return TestingPath, nil
	}
	return "", fmt.Errorf("could not load config file in %s or %s", DefaultPath, TestingPath)
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RealmConfigFor returns the realm-specific (local) config and the other
// realm's (remote) config, based on whether the host is on the VPC realm.
func (c *Config) RealmConfigFor(isVPC bool) (local, remote RealmConfig) {
	if isVPC {
		return c.VPCRealm, c.EC2Realm
	}
	return c.EC2Realm, c.VPCRealm
}

// IDToIPPath returns the full coordination-store path of the forward lease
// parent node.
func (c *Config) IDToIPPath() string {
	return joinPath(c.ZKPrefix, c.ZKIDToIPNode)
}

// IPToIDPath returns the full coordination-store path of the reverse map
// parent node.
func (c *Config) IPToIDPath() string {
	return joinPath(c.ZKPrefix, c.ZKIPToIDNode)
}

// IPMapPath returns the full coordination-store path of the ephemeral
// group-membership parent node.
func (c *Config) IPMapPath() string {
	return joinPath(c.ZKPrefix, c.ZKIPMapNode)
}

func joinPath(prefix, node string) string {
	prefix = strings.TrimRight(prefix, "/")
	node = strings.TrimLeft(node, "/")
	return prefix + "/" + node
}
