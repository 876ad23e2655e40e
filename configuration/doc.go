// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package configuration - settings of the maintenance tools
//
// The optional configuration file is a Lua script returning a table;
// keys it leaves out keep their default values.  The script may use
// os.getenv and the global config_dir, the directory holding the
// script, to compute paths.
package configuration
