package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleConf = `
[ec2]
zk_hosts = zk-ec2-a:2181,zk-ec2-b:2181
overlay_subnet = 10.254.0.0/24

[vpc]
zk_hosts = zk-vpc-a:2181
overlay_subnet = 10.99.0.0/24

[neti]
zk_prefix = /neti
zk_iptoid_node = ip_to_id
zk_idtoip_node = id_to_ip
zk_ip_map_node = ip_map
aws_key = AKIA
aws_secret_key = secret
log_file = /var/log/neti.log
ssh_whitelist = 1.2.3.4, 5.6.7.8/32
open_80 = true
reject_all = false
`

func writeTempConf(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "neti.conf")
	require.NoError(t, os.WriteFile(path, []byte(sampleConf), 0o644))
	return path
}

func TestLoadParsesAllKeys(t *testing.T) {
	path := writeTempConf(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"zk-ec2-a:2181", "zk-ec2-b:2181"}, cfg.EC2Realm.ZKHosts)
	require.Equal(t, "10.254.0.0/24", cfg.EC2Realm.OverlaySubnet)
	require.Equal(t, []string{"zk-vpc-a:2181"}, cfg.VPCRealm.ZKHosts)
	require.Equal(t, "10.99.0.0/24", cfg.VPCRealm.OverlaySubnet)
	require.Equal(t, "/neti", cfg.ZKPrefix)
	require.Equal(t, "/neti/id_to_ip", cfg.IDToIPPath())
	require.Equal(t, "/neti/ip_to_id", cfg.IPToIDPath())
	require.Equal(t, "/neti/ip_map", cfg.IPMapPath())
	require.Equal(t, []string{"1.2.3.4", "5.6.7.8/32"}, cfg.SSHWhitelist)
	require.True(t, cfg.Open80)
	require.False(t, cfg.RejectAll)
}

func TestRealmConfigFor(t *testing.T) {
	path := writeTempConf(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	local, remote := cfg.RealmConfigFor(true)
	require.Equal(t, cfg.VPCRealm, local)
	require.Equal(t, cfg.EC2Realm, remote)

	local, remote = cfg.RealmConfigFor(false)
	require.Equal(t, cfg.EC2Realm, local)
	require.Equal(t, cfg.VPCRealm, remote)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.conf"))
	require.Error(t, err)
}
