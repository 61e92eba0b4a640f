// Copyright The go-cnext Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package cmd

import (
	"fmt"
	"os"

	"github.com/jlaustill/go-cnext/pkg/cnext"
	"github.com/jlaustill/go-cnext/pkg/util/source"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// checkCmd runs every compilation phase without writing output.
var checkCmd = &cobra.Command{
	Use:   "check [flags] source.cnx...",
	Short: "Check C-Next source files without generating output.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		failed := false
		//
		for _, arg := range args {
			config, err := configFromFlags(cmd, arg)
			if err != nil {
				log.Errorln(err)
				os.Exit(1)
			}
			//
			srcfiles, err := source.ReadFiles(arg)
			if err != nil {
				log.Errorln(err)
				os.Exit(1)
			}
			//
			if errs := cnext.CheckSourceFile(config, &srcfiles[0]); len(errs) > 0 {
				for _, e := range errs {
					printSyntaxError(&e)
				}
				//
				failed = true
			} else {
				fmt.Printf("%s: OK\n", arg)
			}
		}
		//
		if failed {
			os.Exit(2)
		}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("cpp", false, "check against C++17 emission rules")
	checkCmd.Flags().Bool("debug", false, "clamp helpers abort on overflow")
	checkCmd.Flags().Bool("atomic", false, "target supports C11 atomics")
	checkCmd.Flags().String("overflow", "", "file-wide overflow default (default, wrap or clamp)")
}
