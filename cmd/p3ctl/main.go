// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command p3ctl issues individual syscall-proxy procedure calls against a
// running p3d, for operator use and for exercising the protocol without
// building and LD_PRELOADing the client shim.
package main

import (
	"fmt"
	"os"

	"github.com/catabozan/p3-syscall-server/internal/config"
	"github.com/spf13/cobra"
)

var transportFlag string

var rootCmd = &cobra.Command{
	Use:   "p3ctl",
	Short: "issue syscall-proxy RPCs against a p3d server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if transportFlag != "" {
			return os.Setenv(config.EnvTransport, transportFlag)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&transportFlag, "transport", "", "override "+config.EnvTransport+" (\"unix\" or \"tcp\")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
