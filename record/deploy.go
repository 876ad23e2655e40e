// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package record

import (
	"fmt"

	"github.com/bitmark-inc/bitmark-dbutils/digest"
	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// DeployVersion - the only supported deploy version
const DeployVersion = 1

// Deploy - a transaction; the payload is not interpreted
type Deploy struct {
	Version byte
	Payload []byte
}

// DeployList - the deploys of one block, in block order
type DeployList []digest.Digest

// Pack - version ++ count(varint) ++ payload
func (d *Deploy) Pack() ([]byte, error) {
	if DeployVersion != d.Version {
		return nil, fault.ErrUnsupportedRecordVers
	}
	buffer := make([]byte, 0, 1+maxVarintBytes+len(d.Payload))
	buffer = append(buffer, d.Version)
	return appendBytes(buffer, d.Payload), nil
}

// Hash - the deploy hash, digest of the packed record
func (d *Deploy) Hash() (digest.Digest, error) {
	packed, err := d.Pack()
	if nil != err {
		return digest.Digest{}, err
	}
	return digest.NewDigest(packed), nil
}

// DecodeDeploy - unpack a deploy record
func DecodeDeploy(buffer []byte) (*Deploy, error) {
	u := &unpacker{buffer: buffer}
	d := &Deploy{}

	var err error
	if d.Version, err = u.getByte(); nil != err {
		return nil, err
	}
	if DeployVersion != d.Version {
		return nil, fmt.Errorf("%w: deploy version: %d", fault.ErrUnsupportedRecordVers, d.Version)
	}
	if d.Payload, err = u.getBytes(); nil != err {
		return nil, err
	}
	if err = u.done(); nil != err {
		return nil, err
	}
	return d, nil
}

// Pack - count(varint) ++ [ deploy hash ]
func (l DeployList) Pack() []byte {
	buffer := make([]byte, 0, maxVarintBytes+len(l)*digest.Length)
	buffer = appendVarint(buffer, uint64(len(l)))
	for _, d := range l {
		buffer = append(buffer, d[:]...)
	}
	return buffer
}

// DecodeDeployList - unpack the deploy hashes of a block
func DecodeDeployList(buffer []byte) (DeployList, error) {
	u := &unpacker{buffer: buffer}

	count, err := u.getVarint()
	if nil != err {
		return nil, err
	}
	if count > uint64(len(buffer))/digest.Length {
		return nil, fault.ErrTruncatedRecord
	}

	list := make(DeployList, 0, count)
	for i := uint64(0); i < count; i += 1 {
		d, err := u.getDigest()
		if nil != err {
			return nil, err
		}
		list = append(list, d)
	}
	if err = u.done(); nil != err {
		return nil, err
	}
	return list, nil
}
