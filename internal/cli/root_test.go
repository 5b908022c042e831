package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func captureRunner(got *[]string) Runner {
	return func(cmd *cobra.Command, argv []string) error {
		*got = argv
		return nil
	}
}

func TestRootCommandPassesFlagsThrough(t *testing.T) {
	var got []string
	cmd := NewRootCommand("/usr/local/bin/loggy", captureRunner(&got))
	cmd.SetArgs([]string{"ls", "-la", "--color=never", "--", "dir"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, []string{"/usr/local/bin/loggy", "ls", "-la", "--color=never", "--", "dir"}, got)
}

func TestRootCommandAliasedKeepsProgramName(t *testing.T) {
	var got []string
	cmd := NewRootCommand("make", captureRunner(&got))
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, []string{"make", "--help"}, got, "aliased commands receive their own --help")
}

func TestRootCommandPassthroughHasNoArgs(t *testing.T) {
	var got []string
	cmd := NewRootCommand("loggy", captureRunner(&got))
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	require.Equal(t, []string{"loggy"}, got)
}

func TestRootCommandHelp(t *testing.T) {
	called := false
	cmd := NewRootCommand("loggy", func(*cobra.Command, []string) error {
		called = true
		return nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	require.False(t, called)
	require.Contains(t, out.String(), "LOGGY_CAPTURE")
}

func TestRootCommandDoesNotParseFlags(t *testing.T) {
	cmd := NewRootCommand("loggy", captureRunner(new([]string)))
	require.True(t, cmd.DisableFlagParsing)
	require.Nil(t, lookupFlag(cmd, "config"), "loggy must not claim flags of wrapped commands")
}

func TestRootCommandReturnsRunnerError(t *testing.T) {
	cmd := NewRootCommand("loggy", func(*cobra.Command, []string) error {
		return &ExitError{Code: 3}
	})
	cmd.SetArgs([]string{"false"})

	err := cmd.Execute()
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.Code)
	require.Equal(t, "exit status 3", exitErr.Error())
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag
	}
	return cmd.PersistentFlags().Lookup(name)
}
