// Package util provides helpers shared by the spf13/cobra commands of tupleflow.
package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

// MustBindPFlag attempts to bind a specific key to a pflag (as used by cobra) and panics
// if the binding fails with a non-nil error.
func MustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func MustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

// PrepareTempConfigDir resets viper and points HOME at a temporary directory holding an
// empty .tupleflow config directory, and returns that directory. The root command must be
// created afterwards since it resolves $HOME when registering config paths.
func PrepareTempConfigDir(t *testing.T) string {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := os.Stat("/etc/tupleflow/config.yaml")
	require.ErrorIs(t, err, os.ErrNotExist, "Config file at /etc/tupleflow/config.yaml would disturb test result.")

	homedir := t.TempDir()
	t.Setenv("HOME", homedir)

	confdir := filepath.Join(homedir, ".tupleflow")
	require.NoError(t, os.Mkdir(confdir, 0750))

	return confdir
}

func PrepareTempConfigFile(t *testing.T, config string) {
	confdir := PrepareTempConfigDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(confdir, "config.yaml"), []byte(config), 0600))
}

// WriteTempFile writes content to a fresh file of the test and returns its path.
func WriteTempFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}
