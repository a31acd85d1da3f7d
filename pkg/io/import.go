package io

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/errors"
)

// CommitFile is the decoded form of a commit file.
type CommitFile struct {
	Commits []dag.Commit        `json:"commits"`
	Refs    map[string][]string `json:"refs,omitempty"`
}

// ReadCommits decodes a commit file from r.
//
// ReadCommits returns an INVALID_FORMAT error if the JSON is malformed, a
// commit has an empty hash or parent, or a hash is listed twice. Ref targets
// need not be listed commits. ReadCommits does not close r.
func ReadCommits(r io.Reader) (*CommitFile, error) {
	var data CommitFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode commits")
	}

	seen := make(map[string]bool, len(data.Commits))
	for i, c := range data.Commits {
		if c.Hash == "" {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "commit %d: empty hash", i)
		}
		if seen[c.Hash] {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "commit %s: listed twice", c.Hash)
		}
		seen[c.Hash] = true
		for _, p := range c.Parents {
			if p == "" {
				return nil, errors.New(errors.ErrCodeInvalidFormat, "commit %s: empty parent", c.Hash)
			}
		}
	}
	if data.Refs == nil {
		data.Refs = map[string][]string{}
	}
	return &data, nil
}

// ImportCommits reads a commit file at path.
func ImportCommits(path string) (*CommitFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCommits(f)
}
