// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func TestHashPassword_FromStdin(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader("correct horse\n"))
	cmd.SetArgs([]string{"hash-password"})

	require.NoError(t, cmd.Execute())

	digest := strings.TrimSpace(out.String())
	assert.True(t, strings.HasPrefix(digest, "$argon2id$v=19$m=65536,t=1,p=4$"), digest)

	ok, err := auth.NewArgon2idHasher().Verify("correct horse", digest)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPassword_EmptyInput(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	configFile = ""

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs([]string{"hash-password"})

	err := cmd.Execute()
	require.ErrorIs(t, err, auth.ErrEmptyPassword)
}

func TestReadPasswordLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "secret\n", want: "secret"},
		{in: "secret\r\n", want: "secret"},
		{in: "no newline", want: "no newline"},
		{in: "first\nsecond\n", want: "first"},
		{in: "  spaced  \n", want: "  spaced  "},
	}
	for _, tt := range tests {
		got, err := readPasswordLine(strings.NewReader(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
