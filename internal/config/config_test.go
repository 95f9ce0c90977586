// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import "testing"

func TestSelectedTransportDefaultsToUnix(t *testing.T) {
	t.Setenv(EnvTransport, "")
	if got := SelectedTransport(); got != TransportUnix {
		t.Errorf("SelectedTransport() = %v, want TransportUnix", got)
	}
}

func TestSelectedTransportIsCaseInsensitive(t *testing.T) {
	t.Setenv(EnvTransport, "TCP")
	if got := SelectedTransport(); got != TransportTCP {
		t.Errorf("SelectedTransport() = %v, want TransportTCP", got)
	}
}

func TestSelectedTransportIgnoresGarbage(t *testing.T) {
	t.Setenv(EnvTransport, "carrier-pigeon")
	if got := SelectedTransport(); got != TransportUnix {
		t.Errorf("SelectedTransport() = %v, want TransportUnix", got)
	}
}
