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
package cnext

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfigFile is the name of the optional per-project configuration
// file, looked up next to the source being transpiled.
const ProjectConfigFile = "cnext.yaml"

// LoadProjectConfig reads the project configuration adjacent to a given
// source file, falling back to the built-in defaults when no file exists.
// Command line flags are applied on top by the caller.
func LoadProjectConfig(srcpath string) (Config, error) {
	config := DefaultConfig()
	//
	path := filepath.Join(filepath.Dir(srcpath), ProjectConfigFile)
	//
	bytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	} else if err != nil {
		return config, err
	}
	//
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return config, err
	}
	//
	return config, nil
}
