// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"

	"github.com/bitmark-inc/bitmark-dbutils/fault"
)

// ParseConfigurationFile - run a Lua script and map the table it
// returns onto config, matching the gluamapper tags of its fields
func ParseConfigurationFile(fileName string, config interface{}) error {
	if _, err := os.Stat(fileName); nil != err {
		return fault.NewIoError(fileName, err)
	}

	state := lua.NewState()
	defer state.Close()
	state.OpenLibs()

	// arg[0] = this file, as for a script run from the command line
	arg := &lua.LTable{}
	arg.Insert(0, lua.LString(fileName))
	state.SetGlobal("arg", arg)
	state.SetGlobal("config_dir", lua.LString(filepath.Dir(fileName)))

	if err := state.DoFile(fileName); nil != err {
		return fmt.Errorf("%w: %s", fault.ErrInvalidConfiguration, err)
	}

	table, ok := state.Get(-1).(*lua.LTable)
	if !ok {
		return fmt.Errorf("%w: %s: script must return a table", fault.ErrInvalidConfiguration, fileName)
	}

	mapper := gluamapper.Mapper{
		Option: gluamapper.Option{
			NameFunc: func(s string) string { return s },
			TagName:  "gluamapper",
		},
	}
	if err := mapper.Map(table, config); nil != err {
		return fmt.Errorf("%w: %s: %s", fault.ErrInvalidConfiguration, fileName, err)
	}
	return nil
}
