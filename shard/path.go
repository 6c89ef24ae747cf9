package shard

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/yargevad/filepathx"
)

const Extension = ".cbor"

var workerSuffix = regexp.MustCompile(`^(.*)-(\d+)\.cbor$`)

// Path names the shard written by worker for a dataset base path.
func Path(base string, worker int) string {
	return fmt.Sprintf("%s-%d%s", base, worker, Extension)
}

// Resolve expands shard locations into an ordered, de-duplicated list of
// files. A location may be a shard file, a glob (`**` matches across
// directories) or a dataset base path, which stands for all of its worker
// shards.
func Resolve(locations ...string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(matches []string) {
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				paths = append(paths, match)
			}
		}
	}
	for _, location := range locations {
		if strings.ContainsAny(location, "*?[") {
			matches, err := filepathx.Glob(location)
			if err != nil {
				return nil, errors.Wrapf(err, "expanding %s", location)
			}
			add(regularFiles(matches))
			continue
		}
		if stat, err := os.Stat(location); err == nil && !stat.IsDir() {
			add([]string{location})
			continue
		}
		matches, err := filepath.Glob(location + "-*" + Extension)
		if err != nil {
			return nil, errors.Wrapf(err, "expanding %s", location)
		}
		var shards []string
		for _, match := range matches {
			if m := workerSuffix.FindStringSubmatch(match); m != nil &&
				m[1] == location {
				shards = append(shards, match)
			}
		}
		if len(shards) == 0 {
			return nil, errors.Errorf("no shards found for %s", location)
		}
		add(shards)
	}
	if len(paths) == 0 {
		return nil, errors.Errorf("no shards match %v", locations)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		return shardLess(paths[i], paths[j])
	})
	return paths, nil
}

func regularFiles(matches []string) []string {
	files := matches[:0]
	for _, match := range matches {
		if stat, err := os.Stat(match); err == nil && !stat.IsDir() {
			files = append(files, match)
		}
	}
	return files
}

// shardLess orders shards of one dataset by worker index, so base-10
// follows base-9.
func shardLess(a, b string) bool {
	ma, mb := workerSuffix.FindStringSubmatch(a),
		workerSuffix.FindStringSubmatch(b)
	if ma != nil && mb != nil && ma[1] == mb[1] {
		wa, _ := strconv.Atoi(ma[2])
		wb, _ := strconv.Atoi(mb[2])
		return wa < wb
	}
	return a < b
}
