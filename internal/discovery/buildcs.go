package discovery

import (
	"os"
	"regexp"
)

var (
	reAddRange = regexp.MustCompile(`(?s)(Public|Private)DependencyModuleNames\.AddRange[ \t]*\([ \t]*new[ \t]+string[ \t]*\[\][ \t]*\{(.*?)\}[ \t]*\)`)
	reAdd      = regexp.MustCompile(`(Public|Private)DependencyModuleNames\.Add[ \t]*\([ \t]*"(.*?)"[ \t]*\)`)
	reQuoted   = regexp.MustCompile(`"(.*?)"`)
)

// parseBuildCS extracts the module names passed to PublicDependencyModuleNames
// and PrivateDependencyModuleNames .AddRange(...)/.Add(...) calls in a
// .Build.cs file. A read failure yields two empty slices rather than an
// error: a malformed or unreadable build file just contributes no declared
// dependencies, matching the original's unwrap_or_default.
func parseBuildCS(path string) (publicDeps, privateDeps []string) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	text := string(content)

	for _, m := range reAddRange.FindAllStringSubmatch(text, -1) {
		listType, body := m[1], m[2]
		for _, q := range reQuoted.FindAllStringSubmatch(body, -1) {
			if listType == "Public" {
				publicDeps = append(publicDeps, q[1])
			} else {
				privateDeps = append(privateDeps, q[1])
			}
		}
	}
	for _, m := range reAdd.FindAllStringSubmatch(text, -1) {
		if m[1] == "Public" {
			publicDeps = append(publicDeps, m[2])
		} else {
			privateDeps = append(privateDeps, m[2])
		}
	}
	return publicDeps, privateDeps
}
