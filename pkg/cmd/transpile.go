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
	"os"
	"strings"

	"github.com/jlaustill/go-cnext/pkg/cnext"
	"github.com/jlaustill/go-cnext/pkg/util/source"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// transpileCmd turns a C-Next source file into C (or C++) text.
var transpileCmd = &cobra.Command{
	Use:   "transpile [flags] source.cnx",
	Short: "Transpile a C-Next source file into C.",
	Long:  "Transpile a C-Next source file into MISRA-leaning C99 (or C++17 with --cpp).",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := configFromFlags(cmd, args[0])
		if err != nil {
			log.Errorln(err)
			os.Exit(1)
		}
		//
		srcfiles, err := source.ReadFiles(args[0])
		if err != nil {
			log.Errorln(err)
			os.Exit(1)
		}
		//
		output, errs := cnext.TranspileSourceFile(config, &srcfiles[0])
		if len(errs) > 0 {
			for _, e := range errs {
				printSyntaxError(&e)
			}
			//
			os.Exit(2)
		}
		//
		outfile := GetString(cmd, "output")
		if outfile == "" {
			outfile = defaultOutputName(args[0], config.Mode == "cpp")
		}
		//
		if err := os.WriteFile(outfile, []byte(output), 0644); err != nil {
			log.Errorln(err)
			os.Exit(1)
		}
		//
		log.Debugf("wrote %s", outfile)
	},
}

// defaultOutputName derives the output filename from the source filename.
func defaultOutputName(srcpath string, cpp bool) string {
	base := strings.TrimSuffix(srcpath, ".cnx")
	//
	if cpp {
		return base + ".cpp"
	}
	//
	return base + ".c"
}

func init() {
	rootCmd.AddCommand(transpileCmd)
	transpileCmd.Flags().StringP("output", "o", "", "output file (defaults to source name with .c, or .cpp in C++ mode)")
	transpileCmd.Flags().Bool("cpp", false, "emit C++17 instead of C99")
	transpileCmd.Flags().Bool("debug", false, "clamp helpers abort on overflow")
	transpileCmd.Flags().Bool("atomic", false, "target supports C11 atomics")
	transpileCmd.Flags().String("overflow", "", "file-wide overflow default (default, wrap or clamp)")
}
