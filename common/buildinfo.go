// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import "fmt"

// BuildInfo describes how this copy of the library was built. The
// three fields are populated via -ldflags -X at release build time;
// a dev build leaves them empty.
type BuildInfo struct {
	Version string
	GitHash string
	Time    string
}

var (
	buildVersion string
	buildTime    string
	buildHash    string
)

func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version: buildVersion,
		GitHash: buildHash,
		Time:    buildTime,
	}
}

// UserAgent builds the string reported on the WebSocket handshake. It
// falls back to the compiled-in Version when no -ldflags build info
// was supplied, and appends the short git hash when one was.
func UserAgent() string {
	info := GetBuildInfo()
	version := info.Version
	if version == "" {
		version = Version
	}
	if info.GitHash == "" {
		return fmt.Sprintf("%s/%s", App, version)
	}
	return fmt.Sprintf("%s/%s (%s)", App, version, info.GitHash)
}
