package service

import (
	"encoding/hex"
	"fmt"
	"runtime/debug"
	"time"
)

const (
	Version     = "0.2.0"
	ServiceName = "keyscraper"
)

var (
	FullVersion = fmt.Sprintf("%s-%v", Version, gitCommitHash[0:8]) // FullVersion prints semantic version followed by commit hash

	gitCommit string // overwritten by -ldflag "-X 'github.com/ATMackay/keyscraper/service.gitCommit=$commit_hash'"
	buildDate string // overwritten by -ldflag "-X 'github.com/ATMackay/keyscraper/service.buildDate=$build_date'"
)

// gitCommitHash https://icinga.com/blog/2022/05/25/embedding-git-commit-information-in-go-binaries/
var gitCommitHash = func() string {
	// Try embedded value
	if len(gitCommit) > 7 {
		mustDecodeHex(gitCommit[0:8]) // will panic if build has been generated with a malicious $commit_hash value
		return gitCommit[0:8]
	}
	var commit string
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				commit = setting.Value
			}
		}
	}
	if len(commit) < 8 {
		return "00000000" // default commit string
	}
	mustDecodeHex(commit)
	return commit
}()

// BuildDate is the -ldflag build date, or the process start time.
var BuildDate = func() string {
	if buildDate != "" {
		return buildDate
	}
	return time.Now().Format(time.RFC3339)
}()

// GitCommit is the short commit hash the binary was built from.
func GitCommit() string {
	return gitCommitHash[0:8]
}

func mustDecodeHex(input string) {
	_, err := hex.DecodeString(input)
	if err != nil {
		panic(err)
	}
}
