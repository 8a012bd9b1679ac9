// Copyright 2024 the Beastie Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package log

import (
	"bytes"
	stdlog "log"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugfOnlyPrintsWhenVerbose(t *testing.T) {
	var out bytes.Buffer
	lw := &logWrapper{Logger: stdlog.New(&out, "", 0)}

	lw.Debugf("hidden %d", 1)
	require.Empty(t, out.String())

	lw.Verbose = true
	lw.Debugf("shown %d", 2)
	require.Contains(t, out.String(), "[beastie][DEBUG] shown 2")
}

func TestWarnfAndErrorfAlwaysPrint(t *testing.T) {
	var out bytes.Buffer
	lw := &logWrapper{Logger: stdlog.New(&out, "", 0)}

	lw.Warnf("careful")
	lw.Errorf("broken")

	require.Contains(t, out.String(), "[beastie][WARN] careful")
	require.Contains(t, out.String(), "[beastie][ERROR] broken")
}

func TestSetVerboseTogglesDefaultLogger(t *testing.T) {
	SetVerbose(true)
	lw, ok := DefaultLogger.(*logWrapper)
	require.True(t, ok)
	require.True(t, lw.Verbose)

	SetVerbose(false)
	require.False(t, lw.Verbose)
}
