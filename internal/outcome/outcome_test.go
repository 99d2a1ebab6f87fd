// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package outcome

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNone, "none"},
		{KindNotFound, "not_found"},
		{KindTransport, "transport"},
		{KindMalformedArchive, "malformed_archive"},
		{KindUnsupportedFormat, "unsupported_format"},
		{KindMissingManifest, "missing_manifest"},
		{KindDependencyInstall, "dependency_install"},
		{KindMissingServerBinary, "missing_server_binary"},
		{KindMissingCredential, "missing_credential"},
		{KindUnexpected, "unexpected"},
		{Kind(99), "unknown"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.kind.String())
	}
}

func TestKind_Benign(t *testing.T) {
	assert.True(t, KindNotFound.Benign())
	assert.True(t, KindMissingManifest.Benign())
	assert.False(t, KindTransport.Benign())
	assert.False(t, KindMissingCredential.Benign())
}

func TestResult_FailureHasEmptyPayload(t *testing.T) {
	res := Failf("fetch", KindTransport, "HTTP %d", 404)

	assert.False(t, res.OK)
	assert.Empty(t, res.Payload)
	assert.Equal(t, KindTransport, res.Kind())
	assert.Equal(t, "HTTP 404", res.Message())
	assert.Equal(t, "fetch: transport: HTTP 404", res.Err.Error())
}

func TestResult_Success(t *testing.T) {
	res := Success("/tmp/odoo")

	assert.True(t, res.OK)
	assert.Equal(t, KindNone, res.Kind())
	assert.Empty(t, res.Message())
}

func TestKindOf(t *testing.T) {
	base := &Error{Step: "setup", Kind: KindDependencyInstall, Err: errors.New("exit 1")}
	wrapped := fmt.Errorf("install failed: %w", base)

	assert.Equal(t, KindDependencyInstall, KindOf(wrapped))
	assert.Equal(t, KindUnexpected, KindOf(errors.New("boom")))
	assert.Equal(t, KindNone, KindOf(nil))
	require.ErrorIs(t, wrapped, base.Err)
}

func TestRecover(t *testing.T) {
	run := func() (res Result) {
		defer Recover("gate", &res)
		panic("nil map")
	}

	res := run()
	require.NotNil(t, res.Err)
	assert.Equal(t, KindUnexpected, res.Kind())
	assert.Contains(t, res.Message(), "nil map")
}
