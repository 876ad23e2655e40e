// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package verify

import (
	"fmt"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// Mode - stop at the first finding or collect them all
type Mode int

// verification modes
const (
	FailFast Mode = iota
	Full
)

func (m Mode) String() string {
	if FailFast == m {
		return "fail-fast"
	}
	return "full"
}

// ParseMode - convert a command line mode name
func ParseMode(s string) (Mode, error) {
	switch s {
	case "fail-fast", "failfast", "":
		return FailFast, nil
	case "full", "no-failfast":
		return Full, nil
	default:
		return FailFast, fmt.Errorf("%w: mode: %q", fault.ErrInvalidMode, s)
	}
}

// Kind - the class of an integrity finding
type Kind int

// kinds of finding
const (
	HashMismatch Kind = iota
	DanglingReference
	UndecodableRecord
	MissingParent
	MissingStateRoot
	MissingDeploy
)

var kindNames = map[Kind]string{
	HashMismatch:      "HashMismatch",
	DanglingReference: "DanglingReference",
	UndecodableRecord: "UndecodableRecord",
	MissingParent:     "MissingParent",
	MissingStateRoot:  "MissingStateRoot",
	MissingDeploy:     "MissingDeploy",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText - kinds appear by name in JSON, also as map keys
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Finding - one integrity problem
//
//   HashMismatch:      Key = stored key,  Actual = digest of stored value
//   DanglingReference: Key = parent node (zero for a root), Ref = missing node
//   UndecodableRecord: Key = stored key
//   MissingParent:     Key = block,       Ref = parent hash
//   MissingStateRoot:  Key = block,       Ref = state root
//   MissingDeploy:     Key = block,       Ref = deploy hash
type Finding struct {
	Kind   Kind          `json:"kind"`
	Table  string        `json:"table"`
	Key    digest.Digest `json:"key"`
	Ref    digest.Digest `json:"ref"`
	Actual digest.Digest `json:"actual"`
	Detail string        `json:"detail,omitempty"`
}

func (f Finding) String() string {
	switch f.Kind {
	case HashMismatch:
		return fmt.Sprintf("%s: %s: %s  actual: %s", f.Kind, f.Table, f.Key, f.Actual)
	case UndecodableRecord:
		return fmt.Sprintf("%s: %s: %s: %s", f.Kind, f.Table, f.Key, f.Detail)
	default:
		return fmt.Sprintf("%s: %s: %s -> %s", f.Kind, f.Table, f.Key, f.Ref)
	}
}

// Report - the result of a verification
type Report struct {
	Mode           Mode         `json:"-"`
	Findings       []Finding    `json:"findings"`
	Counts         map[Kind]int `json:"counts"`
	NodesVisited   int          `json:"nodesVisited"`
	BlocksChecked  int          `json:"blocksChecked"`
	RecordsChecked int          `json:"recordsChecked"`
}

func newReport(mode Mode) *Report {
	return &Report{
		Mode:     mode,
		Findings: []Finding{},
		Counts:   make(map[Kind]int),
	}
}

// OK - true if there are no findings
func (r *Report) OK() bool {
	return 0 == len(r.Findings)
}

// returned internally to unwind a traversal in fail-fast mode
type stopError struct{}

func (stopError) Error() string { return "stop at first finding" }

var errStop error = stopError{}

// record a finding, returning errStop if the traversal should end
func (r *Report) add(f Finding) error {
	r.Findings = append(r.Findings, f)
	r.Counts[f.Kind] += 1
	if FailFast == r.Mode {
		return errStop
	}
	return nil
}
